// Package main drives a running API through one complete missed-call flow:
// missed call, quick-reply selection, free-text details, then reads the
// resulting request back through the admin API.
//
// Usage:
//
//	go run ./scripts/smoke --api=http://localhost:8080 --business=B1 --profession=Vodoinstalater
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var (
	flagAPI        string
	flagBusiness   string
	flagProfession string
	flagCaller     string
	flagSelection  string
	flagDetails    string
	flagToken      string
	flagSecret     string
)

func init() {
	flag.StringVar(&flagAPI, "api", "http://localhost:8080", "API base URL")
	flag.StringVar(&flagBusiness, "business", "smoke-business", "business reference")
	flag.StringVar(&flagProfession, "profession", "Vodoinstalater", "profession label")
	flag.StringVar(&flagCaller, "caller", "+385911234567", "caller number")
	flag.StringVar(&flagSelection, "selection", "Hitno", "quick reply pressed at the intro")
	flag.StringVar(&flagDetails, "details", "Ivan Horvat, Ilica 1, curi voda", "free-text details reply")
	flag.StringVar(&flagToken, "webhook-token", "", "inbound webhook token (or INBOUND_WEBHOOK_TOKEN env)")
	flag.StringVar(&flagSecret, "secret", "", "admin JWT secret (or ADMIN_JWT_SECRET env)")
}

var client = &http.Client{Timeout: 20 * time.Second}

func main() {
	_ = godotenv.Load()
	flag.Parse()
	if flagToken == "" {
		flagToken = os.Getenv("INBOUND_WEBHOOK_TOKEN")
	}
	if flagSecret == "" {
		flagSecret = os.Getenv("ADMIN_JWT_SECRET")
	}
	flagAPI = strings.TrimRight(flagAPI, "/")

	steps := []struct {
		name string
		run  func() error
	}{
		{"missed call", missedCall},
		{"intro selection", func() error { return inbound("BUTTON", flagSelection, "advanced") }},
		{"details", func() error { return inbound("TEXT", flagDetails, "completed") }},
		{"admin listing", adminListing},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			fmt.Printf("FAIL %-16s %v\n", step.name, err)
			os.Exit(1)
		}
		fmt.Printf("PASS %s\n", step.name)
	}
}

func missedCall() error {
	body, _ := json.Marshal(map[string]string{
		"phone_number": flagCaller,
		"business_id":  flagBusiness,
		"profession":   flagProfession,
	})
	var out struct {
		Status   string `json:"status"`
		Template string `json:"template"`
	}
	if err := post("/missed-call", body, &out); err != nil {
		return err
	}
	if out.Status != "intro_sent" {
		return fmt.Errorf("unexpected status %q", out.Status)
	}
	return nil
}

func inbound(kind, value, wantAction string) error {
	message := map[string]string{"type": kind}
	if kind == "BUTTON" {
		message["payload"] = value
	}
	message["text"] = value
	body, _ := json.Marshal(map[string]any{
		"results": []map[string]any{{
			"from":       strings.TrimPrefix(flagCaller, "+"),
			"to":         "385910000000",
			"messageId":  "smoke-" + uuid.NewString(),
			"receivedAt": time.Now().Format("2006-01-02T15:04:05.000-0700"),
			"message":    message,
		}},
	})
	path := "/webhooks/infobip/whatsapp"
	if flagToken != "" {
		path += "?token=" + url.QueryEscape(flagToken)
	}
	var out struct {
		Results []struct {
			Action string `json:"action"`
			Error  string `json:"error"`
		} `json:"results"`
	}
	if err := post(path, body, &out); err != nil {
		return err
	}
	if len(out.Results) != 1 {
		return fmt.Errorf("expected one result, got %d", len(out.Results))
	}
	if got := out.Results[0].Action; got != wantAction {
		return fmt.Errorf("expected action %q, got %q (%s)", wantAction, got, out.Results[0].Error)
	}
	return nil
}

func adminListing() error {
	if flagSecret == "" {
		fmt.Println("SKIP admin listing: no admin secret")
		return nil
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "smoke",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}).SignedString([]byte(flagSecret))
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, flagAPI+"/admin/businesses/"+url.PathEscape(flagBusiness)+"/requests?limit=5", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	var out struct {
		Records []struct {
			CallerID string `json:"caller_id"`
			Payload  string `json:"payload"`
		} `json:"records"`
	}
	if err := do(req, &out); err != nil {
		return err
	}
	for _, rec := range out.Records {
		if rec.Payload == flagDetails {
			return nil
		}
	}
	return fmt.Errorf("request with details %q not found among %d records", flagDetails, len(out.Records))
}

func post(path string, body []byte, out any) error {
	req, err := http.NewRequest(http.MethodPost, flagAPI+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, out)
}

func do(req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}
