package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codeclash/server/internal/game"
)

// runtime pins the engine-side language name and version for each language
// a room may select.
type runtime struct {
	Language string
	Version  string
}

var runtimes = map[string]runtime{
	"javascript": {Language: "js", Version: "18.15.0"},
	"python":     {Language: "python", Version: "3.10.0"},
	"cpp":        {Language: "cpp", Version: "10.2.0"},
}

type Client struct {
	BaseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://emkc.org/api/v2/piston"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

// Run executes source against stdin in the sandbox and returns its output.
func (c *Client) Run(ctx context.Context, language, source, stdin string) (game.RunResult, error) {
	rt, ok := runtimes[language]
	if !ok {
		return game.RunResult{}, fmt.Errorf("unsupported language %q", language)
	}
	payload := map[string]any{
		"language": rt.Language,
		"version":  rt.Version,
		"files":    []map[string]string{{"content": source}},
		"stdin":    stdin,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/execute", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return game.RunResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return game.RunResult{}, fmt.Errorf("piston status %d", resp.StatusCode)
	}
	var out struct {
		Run struct {
			Stdout string `json:"stdout"`
			Stderr string `json:"stderr"`
		} `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return game.RunResult{}, err
	}
	return game.RunResult{Stdout: out.Run.Stdout, Stderr: out.Run.Stderr}, nil
}
