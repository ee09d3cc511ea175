package project

import (
	"net/http"
	"net/url"

	"github.com/tarancss/adminrelay/lib/upstream"
)

// CollectionPath is the upstream path of the projects of a team.
func CollectionPath(teamID string) string {
	return "/v1/teams/" + teamID + "/projects"
}

// ItemPath is the upstream path of one project.
func ItemPath(teamID, projectID string) string {
	return CollectionPath(teamID) + "/" + url.PathEscape(projectID)
}

// ListRequest returns the upstream request listing the projects of the team.
func ListRequest(teamID string) upstream.Request {
	return upstream.NewRequest(http.MethodGet, CollectionPath(teamID), "")
}

// DeleteRequest returns the upstream request deleting a project.
func DeleteRequest(teamID, projectID string) upstream.Request {
	return upstream.NewRequest(http.MethodDelete, ItemPath(teamID, projectID), "")
}

// UpdateRequest returns the upstream request replacing the services of a project with s applied to the bundler.
func UpdateRequest(teamID, projectID string, s Settings) (upstream.Request, error) {
	body, err := UpdateBody(s)
	if err != nil {
		return nil, err
	}

	return upstream.NewRequest(http.MethodPut, ItemPath(teamID, projectID), string(body)), nil
}

// CreateRequest returns the upstream request creating a project. The admin client builds it and the relay forwards it
// untouched.
func CreateRequest(teamID, name string, domains []string) (upstream.Request, error) {
	body, err := CreateBody(name, domains)
	if err != nil {
		return nil, err
	}

	return upstream.NewRequest(http.MethodPost, CollectionPath(teamID), string(body)), nil
}
