// Package adminrelay and its sub-packages implement a relay to manage the projects of a team on a third party API,
// and the admin client driving it.
/*
adminrelay provides you with:

1) a relay microservice (package relay) that implements a RESTful API to create, list and delete projects and to
 update their bundler settings. Every call is forwarded to the single endpoint of the upstream API with the
 credentials of the team (action token and session cookie) taken from the configuration.

2) an admin client (package admin) with a typed client of the relay API and a console keeping the state of an
 administration session: the project list, the create and settings forms, the delete confirmation and the banner
 showing the outcome of the last operation.

Architecture

The admin client only talks to the relay. The relay shapes one upstream request per call (package lib/project builds
the request directives and bodies), sends it through the upstream client (package lib/upstream) and replies either the
upstream body or a result it synthesizes, since the upstream gives no reliable success signal for deletes and updates.
The relay persists nothing.

The upstream replies project listings in more than one shape. The admin client decodes them in a single step
(project.DecodeListing) and reports any other shape as an error instead of an empty list.

The relay can be monitored via a Prometheus API by setting the flag "-m" at startup.

Relay

The relay (package relay) can be started running cmd/relay/main.go. It is configured with a JSON config file (flag
"-c"), a .env file and environment variables (see lib/config).

Admin

The admin command line (cmd/admin) lists, creates and deletes projects and edits their bundler settings through the
console of package admin.

*/
package adminrelay
