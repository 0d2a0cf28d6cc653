package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running fleetgate-api with the seed data loaded:
// signs in as the seeded driver, toggles their vehicle both ways, verifies
// a foreign vehicle is denied, and signs out twice.
func main() {
	base := os.Getenv("FLEETGATE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	var grant struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	mustPost(client, base+"/v1/auth/sign-in", "", map[string]any{
		"email":    "driver@fleetgate.dev",
		"password": "driver-password",
	}, http.StatusOK, &grant)

	var vehicles []struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	mustGet(client, base+"/v1/vehicles", grant.AccessToken, http.StatusOK, &vehicles)
	if len(vehicles) == 0 {
		log.Fatal("seeded driver has no vehicles")
	}

	var toggled struct {
		Active bool `json:"active"`
	}
	mustPost(client, base+"/v1/vehicles/"+vehicles[0].ID+"/toggle", grant.AccessToken, nil, http.StatusOK, &toggled)
	if toggled.Active == vehicles[0].Active {
		log.Fatalf("toggle did not flip active: before=%v after=%v", vehicles[0].Active, toggled.Active)
	}
	mustPost(client, base+"/v1/vehicles/"+vehicles[0].ID+"/toggle", grant.AccessToken, nil, http.StatusOK, &toggled)
	if toggled.Active != vehicles[0].Active {
		log.Fatal("second toggle did not restore the original state")
	}

	// The seed ships a vehicle owned by another driver; touching it is a 403.
	mustPost(client, base+"/v1/vehicles/veh-other/toggle", grant.AccessToken, nil, http.StatusForbidden, nil)

	mustPost(client, base+"/v1/auth/sign-out", "", map[string]any{"refresh_token": grant.RefreshToken}, http.StatusOK, nil)
	mustPost(client, base+"/v1/auth/sign-out", "", map[string]any{"refresh_token": grant.RefreshToken}, http.StatusOK, nil)

	fmt.Println("✅ fleetgate smoke test passed")
}

func mustPost(client *http.Client, url, token string, body any, wantStatus int, out any) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("encode %s: %v", url, err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		log.Fatalf("build %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	do(client, req, token, wantStatus, out)
}

func mustGet(client *http.Client, url, token string, wantStatus int, out any) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("build %s: %v", url, err)
	}
	do(client, req, token, wantStatus, out)
}

func do(client *http.Client, req *http.Request, token string, wantStatus int, out any) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", req.Method, req.URL, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", req.URL, err)
		}
	}
}
