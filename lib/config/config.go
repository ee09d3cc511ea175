// Package config provides helper functionality to read the relay configuration from JSON config files, a .env file or
// OS ENV variables. The default configuration is overridden first by:
//
// - a valid JSON config file (see cmd/conf.json for a sample), then by
//
// - OS ENV variables, which may also be provided in a .env file in the working directory. Variables already present
// in the environment take precedence over the ones in the .env file. RELAY_ORIGINS is a comma separated list. For
// example:
// # export TEAM_ID=team_01 NEXT_ACTION_TOKEN=7f0a... TW_COOKIE='tw_session=...' PROXY_PORT=3000
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Default configuration variables
var (
	EndpointDefault     = ""
	PortDefault         = "3000"
	SSLPortDefault      = ""
	SSLCertDefault      = ""
	SSLKeyDefault       = ""
	UpstreamURLDefault  = "https://thirdweb.com/"
	UpstreamHostDefault = "thirdweb.com"
	OriginsDefault      = []string{"*"}
)

// EnvFile is the dotenv file read before OS ENV variables are applied. A missing file is not an error.
var EnvFile = ".env" //nolint:gochecknoglobals // overridden in tests

// ServiceConfig contains the fields required by the relay service: API endpoint, ports, SSL cert and key, the upstream
// URL and host header, the team whose projects are managed, the fixed upstream credentials (action token and session
// cookie) and the CORS origins allowed to call the relay.
type ServiceConfig struct {
	RestfulEndpoint string   `json:"endpoint"`
	Port            string   `json:"port"`
	SSLPort         string   `json:"sslport"`
	SSLCert         string   `json:"sslcert"`
	SSLKey          string   `json:"sslkey"`
	UpstreamURL     string   `json:"upstream"`
	UpstreamHost    string   `json:"upstreamHost"`
	TeamID          string   `json:"teamId"`
	ActionToken     string   `json:"actionToken"`
	Cookie          string   `json:"cookie"`
	Origins         []string `json:"origins"`
}

// String hides the credentials so the configuration can be logged at startup.
func (c ServiceConfig) String() string {
	masked := c
	if masked.ActionToken != "" {
		masked.ActionToken = "***"
	}
	if masked.Cookie != "" {
		masked.Cookie = "***"
	}
	tmp, _ := json.Marshal(masked)
	return string(tmp)
}

// ExtractConfiguration reads from the given JSON filename and returns the ServiceConfig or an error otherwise.
func ExtractConfiguration(filename string) (ServiceConfig, error) {
	conf := ServiceConfig{
		RestfulEndpoint: EndpointDefault,
		Port:            PortDefault,
		SSLPort:         SSLPortDefault,
		SSLCert:         SSLCertDefault,
		SSLKey:          SSLKeyDefault,
		UpstreamURL:     UpstreamURLDefault,
		UpstreamHost:    UpstreamHostDefault,
		Origins:         OriginsDefault,
	}
	// read from config file first
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			log.Println("Configuration file not found.")
			return conf, err
		}
		defer file.Close()
		if err = json.NewDecoder(file).Decode(&conf); err != nil {
			return conf, err
		}
	}
	// load .env, it never overrides variables already set
	if err := godotenv.Load(EnvFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Error reading %s: %v", EnvFile, err)
			return conf, err
		}
		log.Printf("No %s file found, using environment variables", EnvFile)
	}
	// then override config values with OS ENV variables
	var tmp string
	if tmp = os.Getenv("RELAY_ENDPOINT"); tmp != "" {
		conf.RestfulEndpoint = tmp
	}
	if tmp = os.Getenv("PROXY_PORT"); tmp != "" {
		conf.Port = tmp
	}
	if tmp = os.Getenv("RELAY_SSLPORT"); tmp != "" {
		conf.SSLPort = tmp
	}
	if tmp = os.Getenv("RELAY_SSLCERT"); tmp != "" {
		conf.SSLCert = tmp
	}
	if tmp = os.Getenv("RELAY_SSLKEY"); tmp != "" {
		conf.SSLKey = tmp
	}
	if tmp = os.Getenv("UPSTREAM_URL"); tmp != "" {
		conf.UpstreamURL = tmp
	}
	if tmp = os.Getenv("UPSTREAM_HOST"); tmp != "" {
		conf.UpstreamHost = tmp
	}
	if tmp = os.Getenv("TEAM_ID"); tmp != "" {
		conf.TeamID = tmp
	}
	if tmp = os.Getenv("NEXT_ACTION_TOKEN"); tmp != "" {
		conf.ActionToken = tmp
	}
	if tmp = os.Getenv("TW_COOKIE"); tmp != "" {
		conf.Cookie = tmp
	}
	if tmp = os.Getenv("RELAY_ORIGINS"); tmp != "" {
		conf.Origins = nil
		for _, o := range strings.Split(tmp, ",") {
			if o = strings.TrimSpace(o); o != "" {
				conf.Origins = append(conf.Origins, o)
			}
		}
	}
	return conf, nil
}
