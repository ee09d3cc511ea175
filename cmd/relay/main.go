// Package main: relay service.
//
// The relay forwards project-management calls of the admin client to the upstream API with the team credentials
// taken from the configuration. It persists nothing.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tarancss/adminrelay/lib/config"
	"github.com/tarancss/adminrelay/lib/upstream"
	"github.com/tarancss/adminrelay/relay"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100/metrics")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration:%s", conf)

	if conf.TeamID == "" || conf.ActionToken == "" || conf.Cookie == "" {
		log.Print("Warning: team id, action token or cookie not configured, upstream calls will be rejected")
	}

	// upstream client
	up, err := upstream.New(conf.UpstreamURL, conf.UpstreamHost, conf.ActionToken, conf.Cookie)
	if err != nil {
		panic(err)
	}

	// load Prometheus monitor
	var reg *prometheus.Registry

	if *monitor {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			if err := http.ListenAndServe(":9100", h); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	// create relay service, a nil *Registry must not reach it as a Registerer
	var rl *relay.Relay
	if reg != nil {
		rl = relay.New(conf.TeamID, up, conf.Origins, reg)
	} else {
		rl = relay.New(conf.TeamID, up, conf.Origins, nil)
	}

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		rl.Stop()
	}()

	// init RESTful API, wait for its return and log response
	log.Printf("Relay: %s\n", rl.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))
}
