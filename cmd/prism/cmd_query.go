// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/MakeNowJust/heredoc"
	"github.com/alecthomas/chroma/v2/quick"
	sse "github.com/r3labs/sse/v2"
	"github.com/spf13/cobra"
)

var (
	queryServerURL string
	queryClientID  string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a running Prism server a question",
	Long: heredoc.Doc(`
		Send a natural-language question to a running Prism server and
		stream the answer: the model's reasoning, the validated SQL, the
		result rows, and the suggested chart type.

		The command starts an async run and subscribes to its event
		stream, so a dropped connection can be resumed by any SSE client
		with the printed stream id.
	`),
	Example: heredoc.Doc(`
		prism query "total sales by region last quarter"
		prism query --server http://prism.internal:8000 "top ten customers"
	`),
	Args: cobra.ExactArgs(1),
	Run:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryServerURL, "server", "http://localhost:8000", "Prism server base URL")
	queryCmd.Flags().StringVar(&queryClientID, "client-id", "", "client id for rate accounting (default: remote IP)")
	rootCmd.AddCommand(queryCmd)
}

var (
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	thoughtStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
)

func runQuery(cmd *cobra.Command, args []string) {
	question := args[0]
	base := strings.TrimRight(queryServerURL, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	streamID, err := startAsyncQuery(ctx, base, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(stageStyle.Render("stream " + streamID))

	client := sse.NewClient(base + "/api/query/events")
	if queryClientID != "" {
		client.Headers["X-Client-ID"] = queryClientID
	}

	failed := false
	thinking := false
	err = client.SubscribeWithContext(ctx, streamID, func(msg *sse.Event) {
		done, isErr := renderEvent(string(msg.Event), msg.Data, &thinking)
		if isErr {
			failed = true
		}
		if done {
			cancel()
		}
	})
	// Cancellation after done/error is the normal exit path.
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: stream failed: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

// startAsyncQuery begins a run and returns the stream id.
func startAsyncQuery(ctx context.Context, base, question string) (string, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/query/async", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if queryClientID != "" {
		req.Header.Set("X-Client-ID", queryClientID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot reach server at %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return "", fmt.Errorf("server rejected query: %s", e.Error)
		}
		return "", fmt.Errorf("server rejected query: HTTP %d", resp.StatusCode)
	}

	var accepted struct {
		StreamID string `json:"stream_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("bad server response: %w", err)
	}
	return accepted.StreamID, nil
}

// renderEvent prints one pipeline event. Returns (terminal, failed).
func renderEvent(eventType string, data []byte, thinking *bool) (bool, bool) {
	switch eventType {
	case "state":
		var p struct {
			State string `json:"state"`
		}
		_ = json.Unmarshal(data, &p)
		endThinking(thinking)
		fmt.Println(stageStyle.Render("› " + p.State))

	case "thought":
		var p struct {
			Content string `json:"content"`
			Done    bool   `json:"done"`
		}
		_ = json.Unmarshal(data, &p)
		if p.Done {
			endThinking(thinking)
			return false, false
		}
		*thinking = true
		fmt.Print(thoughtStyle.Render(p.Content))

	case "sql":
		var p struct {
			Content string `json:"content"`
		}
		_ = json.Unmarshal(data, &p)
		endThinking(thinking)
		fmt.Println(labelStyle.Render("SQL:"))
		printSQL(p.Content)

	case "data":
		var p struct {
			Columns  []string `json:"columns"`
			RowCount int      `json:"row_count"`
		}
		_ = json.Unmarshal(data, &p)
		endThinking(thinking)
		fmt.Printf("%s %d rows (%s)\n",
			labelStyle.Render("Data:"), p.RowCount, strings.Join(p.Columns, ", "))

	case "chart_type":
		var p struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &p)
		fmt.Printf("%s %s\n", labelStyle.Render("Chart:"), p.Type)

	case "viz_config":
		// The filled ECharts option is for UIs; the terminal just notes it.
		fmt.Println(stageStyle.Render("(visualization config received)"))

	case "error":
		var p struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &p)
		endThinking(thinking)
		fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %s: %s", p.Code, p.Message)))
		return true, true

	case "done":
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &p)
		endThinking(thinking)
		fmt.Println(okStyle.Render("✓ " + p.Message))
		return true, false
	}
	return false, false
}

// endThinking terminates the in-progress thought line, if any.
func endThinking(thinking *bool) {
	if *thinking {
		fmt.Println()
		*thinking = false
	}
}

// printSQL highlights the statement when stdout is a capable terminal,
// falling back to plain text.
func printSQL(sql string) {
	if err := quick.Highlight(os.Stdout, sql+"\n", "postgres", "terminal256", "monokai"); err != nil {
		fmt.Println(sql)
	}
}
