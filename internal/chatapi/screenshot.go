package chatapi

import (
	"net/http"
	"strings"
	"time"

	"goa.design/clue/log"
)

type screenshotRequest struct {
	Screenshot   string `json:"screenshot"`
	PageURL      string `json:"pageUrl"`
	PageTitle    string `json:"pageTitle"`
	SelectedText string `json:"selectedText,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

type screenshotReceipt struct {
	PageTitle      string `json:"pageTitle"`
	PageURL        string `json:"pageUrl"`
	SelectedText   string `json:"selectedText,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	ScreenshotSize int    `json:"screenshotSize"`
}

// screenshot acknowledges a page capture sent by the browser extension.
// Captures are not stored.
func (s *Server) screenshot(w http.ResponseWriter, r *http.Request) {
	var body screenshotRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if body.Screenshot == "" || body.PageURL == "" || body.PageTitle == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: screenshot, pageUrl, or pageTitle", nil)
		return
	}
	if !strings.HasPrefix(body.Screenshot, "data:image/") {
		writeError(w, http.StatusBadRequest, "Invalid screenshot format. Expected data URL.", nil)
		return
	}

	ts := body.Timestamp
	if ts == 0 {
		ts = s.now().UnixMilli()
	}
	log.Info(r.Context(),
		log.KV{K: "msg", V: "screenshot received"},
		log.KV{K: "page-title", V: body.PageTitle},
		log.KV{K: "page-url", V: body.PageURL},
		log.KV{K: "has-selected-text", V: body.SelectedText != ""},
		log.KV{K: "captured-at", V: time.UnixMilli(ts).UTC().Format(time.RFC3339)},
		log.KV{K: "size", V: len(body.Screenshot)},
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Screenshot received successfully",
		"data": screenshotReceipt{
			PageTitle:      body.PageTitle,
			PageURL:        body.PageURL,
			SelectedText:   body.SelectedText,
			Timestamp:      ts,
			ScreenshotSize: len(body.Screenshot),
		},
	})
}

func (s *Server) screenshotInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Screenshot API endpoint",
		"methods": []string{"POST"},
		"postBody": map[string]string{
			"screenshot":   "data:image/png;base64,...",
			"pageUrl":      "https://example.com",
			"pageTitle":    "Page Title",
			"selectedText": "Optional selected text",
			"timestamp":    "Unix timestamp",
		},
	})
}
