package fhirclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SMARTConfiguration is the subset of a SMART-on-FHIR discovery document
// (fetched from the EMR's /.well-known/smart-configuration) the token
// manager needs to run the authorization-code and refresh flows.
type SMARTConfiguration struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint"`
	TokenEndpoint          string   `json:"token_endpoint"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
	CapabilitiesSupported  []string `json:"capabilities"`
}

// DiscoverSMARTConfiguration fetches and parses the SMART-on-FHIR discovery
// document from an EMR's FHIR base URL. Generalized from the teacher's
// NewOIDCProvider, which performs the same discovery-document fetch
// against a generic OIDC issuer's /.well-known/openid-configuration.
func DiscoverSMARTConfiguration(fhirBaseURL string) (*SMARTConfiguration, error) {
	fhirBaseURL = strings.TrimRight(fhirBaseURL, "/")
	discoveryURL := fhirBaseURL + "/.well-known/smart-configuration"

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(discoveryURL)
	if err != nil {
		return nil, fmt.Errorf("fhirclient: fetching SMART discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fhirclient: SMART discovery endpoint returned status %d", resp.StatusCode)
	}

	var cfg SMARTConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("fhirclient: decoding SMART discovery document: %w", err)
	}

	if cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("fhirclient: SMART discovery document missing token_endpoint")
	}

	return &cfg, nil
}
