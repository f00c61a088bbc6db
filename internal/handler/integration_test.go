package handler_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/msomdec/care-practice/internal/llm/llmtest"
)

type apiClient struct {
	t    *testing.T
	http *http.Client
	base string
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type sessionResp struct {
	Session struct {
		SessionID      string `json:"sessionId"`
		Phase          string `json:"phase"`
		Mode           string `json:"mode"`
		TurnCount      int    `json:"turnCount"`
		TurnLimit      int    `json:"turnLimit"`
		PhaseCompleted bool   `json:"phaseCompleted"`
		PendingClient  string `json:"pendingClient"`
		Turns          []struct {
			Counselor string         `json:"counselor"`
			Flags     map[string]int `json:"flags"`
			Feedback  *struct {
				StrengthTitle string `json:"strengthTitle"`
			} `json:"feedback"`
		} `json:"turns"`
		Notices []struct {
			Kind string `json:"kind"`
		} `json:"notices"`
	} `json:"session"`
	Error string `json:"error"`
}

func TestIntegration_PracticeProtocol(t *testing.T) {
	srv := newTestEnv(t).server(t)
	c := &apiClient{t: t, http: newClient(t), base: srv.URL}

	if code := c.do("GET", "/api/practice", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before sign in, got %d", code)
	}
	var errResp map[string]string
	if code := c.do("POST", "/api/auth/signin", map[string]string{"email": "me@gmail.com"}, &errResp); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a non-institutional email, got %d", code)
	}
	if code := c.do("POST", "/api/auth/signin", map[string]string{"email": "student@example.edu"}, nil); code != http.StatusOK {
		t.Fatalf("sign in: expected 200, got %d", code)
	}

	var s sessionResp
	if code := c.do("GET", "/api/practice", nil, &s); code != http.StatusOK {
		t.Fatalf("get practice: expected 200, got %d", code)
	}
	if s.Session.Phase != "pre" || s.Session.PendingClient == "" || s.Session.TurnLimit != 1 {
		t.Fatalf("unexpected initial session: %+v", s.Session)
	}

	if code := c.do("PUT", "/api/practice/mode", map[string]string{"mode": "practice_feedback"}, nil); code != http.StatusConflict {
		t.Fatalf("mode in pre: expected 409, got %d", code)
	}
	if code := c.do("POST", "/api/practice/turns", map[string]string{"text": "  "}, nil); code != http.StatusConflict {
		t.Fatalf("blank turn: expected 409, got %d", code)
	}

	s = sessionResp{}
	if code := c.do("POST", "/api/practice/turns", map[string]string{"text": "What brings you in today?"}, &s); code != http.StatusOK {
		t.Fatalf("submit turn: expected 200, got %d", code)
	}
	if !s.Session.PhaseCompleted || len(s.Session.Turns) != 1 || s.Session.Turns[0].Flags["open_question"] != 1 {
		t.Fatalf("unexpected session after turn: %+v", s.Session)
	}

	s = sessionResp{}
	if code := c.do("POST", "/api/practice/efficacy", map[string]int{"exploration": 5, "action": 4, "sessionMgmt": 6}, &s); code != http.StatusOK {
		t.Fatalf("efficacy: expected 200, got %d", code)
	}
	if s.Session.Phase != "practice" {
		t.Fatalf("expected auto-advance to practice, got %s", s.Session.Phase)
	}

	if code := c.do("PUT", "/api/practice/mode", map[string]string{"mode": "practice_feedback"}, nil); code != http.StatusOK {
		t.Fatalf("mode: expected 200, got %d", code)
	}
	s = sessionResp{}
	if code := c.do("POST", "/api/practice/turns", map[string]string{"text": "It sounds lonely being far from home."}, &s); code != http.StatusOK {
		t.Fatalf("practice turn: expected 200, got %d", code)
	}
	if fb := s.Session.Turns[0].Feedback; fb == nil || fb.StrengthTitle != "Empathy" {
		t.Fatalf("expected micro feedback, got %+v", s.Session.Turns[0])
	}

	var fbResp struct {
		Feedback struct {
			Ratings map[string]struct {
				Score int `json:"score"`
			} `json:"ratings"`
		} `json:"feedback"`
	}
	if code := c.do("POST", "/api/practice/feedback", nil, &fbResp); code != http.StatusOK {
		t.Fatalf("feedback: expected 200, got %d", code)
	}
	if fbResp.Feedback.Ratings["Empathy"].Score != 4 {
		t.Fatalf("unexpected feedback: %+v", fbResp)
	}

	if code := c.do("POST", "/api/practice/advance", nil, nil); code != http.StatusConflict {
		t.Fatalf("advance before completion: expected 409, got %d", code)
	}

	var results struct {
		Results struct {
			Rates    map[string]float64 `json:"rates"`
			Tallies  []struct{ Present, Absent int } `json:"tallies"`
			Efficacy []struct {
				Phase string `json:"phase"`
			} `json:"efficacy"`
		} `json:"results"`
	}
	if code := c.do("GET", "/api/practice/results", nil, &results); code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d", code)
	}
	if results.Results.Rates["empathy"] != 1 || len(results.Results.Efficacy) != 1 {
		t.Fatalf("unexpected results: %+v", results.Results)
	}
}

func TestIntegration_AssessmentAndExport(t *testing.T) {
	srv := newTestEnv(t).server(t)
	c := &apiClient{t: t, http: newClient(t), base: srv.URL}

	if code := c.do("POST", "/api/auth/signin", map[string]string{"email": "rater@example.edu"}, nil); code != http.StatusOK {
		t.Fatalf("sign in: expected 200, got %d", code)
	}
	if code := c.do("PATCH", "/api/auth/rater", map[string]string{"raterId": "R-01"}, nil); code != http.StatusOK {
		t.Fatalf("update rater: expected 200, got %d", code)
	}

	var cultures struct {
		Cultures []string `json:"cultures"`
	}
	if code := c.do("GET", "/api/assess/cultures", nil, &cultures); code != http.StatusOK || len(cultures.Cultures) != 1 {
		t.Fatalf("cultures: %d %+v", code, cultures)
	}

	var item struct {
		Item struct {
			ID    string `json:"id"`
			Total int    `json:"total"`
			Turns []struct {
				Speaker string `json:"speaker"`
			} `json:"turns"`
		} `json:"item"`
	}
	if code := c.do("GET", "/api/assess/Chinese/items/0", nil, &item); code != http.StatusOK {
		t.Fatalf("item: expected 200, got %d", code)
	}
	if item.Item.ID != "c1" || item.Item.Total != 2 || item.Item.Turns[0].Speaker != "client" {
		t.Fatalf("unexpected item: %+v", item.Item)
	}
	if code := c.do("GET", "/api/assess/Chinese/items/7", nil, nil); code != http.StatusNotFound {
		t.Fatalf("item out of range: expected 404, got %d", code)
	}

	scores := map[string]int{
		"empathy_warmth": 4, "clarity_helpfulness": 4, "safety_nonjudgment": 5,
		"cultural_appropriateness": 3, "specificity_nostereotype": 4, "meaning_preserve": 5,
	}
	var submit struct {
		NextIndex int `json:"nextIndex"`
		Progress  struct{ Done, Total int } `json:"progress"`
	}
	if code := c.do("POST", "/api/assess/Chinese/ratings", map[string]any{"itemId": "c1", "scores": scores, "comment": "natural"}, &submit); code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", code)
	}
	if submit.NextIndex != 1 || submit.Progress.Done != 1 || submit.Progress.Total != 2 {
		t.Fatalf("unexpected submit result: %+v", submit)
	}

	var ov struct {
		Overview struct {
			ResumeIndex int `json:"resumeIndex"`
		} `json:"overview"`
	}
	if code := c.do("GET", "/api/assess/Chinese?current=0", nil, &ov); code != http.StatusOK || ov.Overview.ResumeIndex != 1 {
		t.Fatalf("overview: %d %+v", code, ov)
	}

	if code := c.do("GET", "/api/export/assessments.csv", nil, nil); code != http.StatusForbidden {
		t.Fatalf("export without instructor: expected 403, got %d", code)
	}
	if code := c.do("POST", "/api/auth/instructor", map[string]string{"pin": "0000"}, nil); code != http.StatusForbidden {
		t.Fatalf("wrong PIN: expected 403, got %d", code)
	}
	if code := c.do("POST", "/api/auth/instructor", map[string]string{"pin": testPIN}, nil); code != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d", code)
	}

	resp, err := c.http.Get(srv.URL + "/api/export/assessments.csv")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Fatalf("export: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[1][1] != "R-01" || records[1][12] != "natural" {
		t.Fatalf("unexpected csv: %v", records)
	}
}

func TestIntegration_HomeAndPracticePage(t *testing.T) {
	srv := newTestEnv(t).server(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Sign in") {
		t.Fatalf("home: %d", resp.StatusCode)
	}

	resp, err = client.Get(srv.URL + "/practice")
	if err != nil {
		t.Fatalf("GET /practice: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("anonymous practice page: expected 303, got %d", resp.StatusCode)
	}

	c := &apiClient{t: t, http: client, base: srv.URL}
	if code := c.do("POST", "/api/auth/signin", map[string]string{"email": "page@example.edu"}, nil); code != http.StatusOK {
		t.Fatalf("sign in: %d", code)
	}
	resp, err = client.Get(srv.URL + "/practice")
	if err != nil {
		t.Fatalf("GET /practice: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("practice page: expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{`id="transcript"`, "I miss home a lot.", "turn 0 / 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in practice page", want)
		}
	}

	resp, err = client.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "care_practice_") {
		t.Fatal("expected application metrics to be exposed")
	}
}

func TestIntegration_GenerationFailureKeepsSession(t *testing.T) {
	srv := newTestEnvWith(t, &llmtest.Backend{Err: errors.New("connection refused")}).server(t)
	c := &apiClient{t: t, http: newClient(t), base: srv.URL}

	if code := c.do("POST", "/api/auth/signin", map[string]string{"email": "kim@example.edu"}, nil); code != http.StatusOK {
		t.Fatalf("sign in: %d", code)
	}

	var resp sessionResp
	if code := c.do("GET", "/api/practice", nil, &resp); code != http.StatusBadGateway {
		t.Fatalf("expected 502 when no client line can be generated, got %d", code)
	}
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
	if resp.Session.Phase != "pre" || resp.Session.PendingClient != "" {
		t.Fatalf("expected the saved pre session without a client line, got %+v", resp.Session)
	}
	found := false
	for _, n := range resp.Session.Notices {
		found = found || n.Kind == "generation_failed"
	}
	if !found {
		t.Fatalf("expected a generation_failed notice, got %+v", resp.Session.Notices)
	}

	if code := c.do("POST", "/api/practice/turns", map[string]string{"text": "Hello there."}, nil); code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a turn without a client line, got %d", code)
	}
}
