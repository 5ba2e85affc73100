// Command smoke drives one scheduling run against a live instance and prints
// a summary, for release verification against a staging environment.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type generateRequest struct {
	HorizonStart string `json:"horizonStart"`
	HorizonEnd   string `json:"horizonEnd"`
	ServiceType  string `json:"serviceType"`
	MaxSessions  int    `json:"maxSessions,omitempty"`
}

type session struct {
	ID          string    `json:"id"`
	TherapistID string    `json:"therapistId"`
	ClientID    string    `json:"clientId"`
	StartAt     time.Time `json:"startAt"`
	Minutes     int       `json:"minutes"`
	Score       float64   `json:"score"`
}

type discard struct {
	TherapistID string `json:"therapistId"`
	ClientID    string `json:"clientId"`
	Report      struct {
		Constraint string `json:"constraint"`
		Reason     string `json:"reason"`
	} `json:"report"`
}

type generateResponse struct {
	Data struct {
		ProposalID string    `json:"proposalId"`
		State      string    `json:"state"`
		Sessions   []session `json:"sessions"`
		Discards   []discard `json:"discards"`
		Stats      struct {
			Therapists          int   `json:"therapists"`
			Clients             int   `json:"clients"`
			CandidatesEvaluated int   `json:"candidatesEvaluated"`
			DurationMillis      int64 `json:"durationMillis"`
		} `json:"stats"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base        string
		token       string
		serviceType string
		start       string
		end         string
		maxSessions int
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token, when auth is enabled")
	flag.StringVar(&serviceType, "service", "direct_therapy", "Service type to schedule")
	flag.StringVar(&start, "start", "", "Horizon start (YYYY-MM-DD), defaults to next Monday")
	flag.StringVar(&end, "end", "", "Horizon end (YYYY-MM-DD), defaults to start+7d")
	flag.IntVar(&maxSessions, "max", 0, "Cap on proposed sessions (0 = unlimited)")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "HTTP client timeout")
	flag.Parse()

	if start == "" {
		start = nextMonday().Format("2006-01-02")
	}
	if end == "" {
		s, err := time.Parse("2006-01-02", start)
		if err != nil {
			log.Fatalf("invalid -start: %v", err)
		}
		end = s.AddDate(0, 0, 7).Format("2006-01-02")
	}

	payload, err := json.Marshal(generateRequest{
		HorizonStart: start,
		HorizonEnd:   end,
		ServiceType:  serviceType,
		MaxSessions:  maxSessions,
	})
	if err != nil {
		log.Fatalf("marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, base+"/schedule/generate", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	began := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("decode response: %v", err)
	}
	if body.Error != nil {
		log.Fatalf("run rejected (%d %s): %s", resp.StatusCode, body.Error.Code, body.Error.Message)
	}

	data := body.Data
	fmt.Printf("proposal %s (%s) in %s\n", data.ProposalID, data.State, time.Since(began).Round(time.Millisecond))
	fmt.Printf("  roster: %d therapists, %d clients\n", data.Stats.Therapists, data.Stats.Clients)
	fmt.Printf("  evaluated %d candidates, proposed %d sessions, discarded %d\n",
		data.Stats.CandidatesEvaluated, len(data.Sessions), len(data.Discards))

	byConstraint := map[string]int{}
	for _, d := range data.Discards {
		byConstraint[d.Report.Constraint]++
	}
	for constraint, count := range byConstraint {
		fmt.Printf("    %-32s %d\n", constraint, count)
	}

	if len(data.Sessions) == 0 {
		fmt.Fprintln(os.Stderr, "warning: no sessions proposed")
		os.Exit(1)
	}
	for i, s := range data.Sessions {
		if i == 10 {
			fmt.Printf("  ... and %d more\n", len(data.Sessions)-10)
			break
		}
		fmt.Printf("  %s  t=%s c=%s  %dm  score=%.3f\n",
			s.StartAt.Format("Mon 2006-01-02 15:04"), s.TherapistID, s.ClientID, s.Minutes, s.Score)
	}
}

func nextMonday() time.Time {
	now := time.Now().UTC()
	offset := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return now.AddDate(0, 0, offset)
}
