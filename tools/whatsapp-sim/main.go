// whatsapp-sim POSTs a Cloud-API-shaped webhook payload at a locally
// running randevud, for exercising the messaging flow without Meta.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL   = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "randevud base url")
		tenantKey = flag.String("tenant-key", getenv("TENANT_KEY", ""), "tenant webhook key")
		from      = flag.String("from", getenv("FROM_PHONE", "905551112233"), "sender phone (wa_id)")
		name      = flag.String("name", getenv("FROM_NAME", "Test Client"), "sender profile name")
		text      = flag.String("text", "", "message text (required)")
	)
	flag.Parse()

	if strings.TrimSpace(*tenantKey) == "" {
		fatal("TENANT_KEY is required")
	}
	if strings.TrimSpace(*text) == "" {
		fatal("-text is required")
	}

	payload, err := buildPayload(*from, *name, *text)
	if err != nil {
		fatal(err.Error())
	}

	url := strings.TrimRight(*baseURL, "/") + "/v1/webhook/whatsapp/" + *tenantKey
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d body=%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildPayload(from, name, text string) ([]byte, error) {
	messageID := fmt.Sprintf("wamid.sim_%d", time.Now().UnixNano())
	return json.Marshal(map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"id": "0",
			"changes": []map[string]any{{
				"field": "messages",
				"value": map[string]any{
					"messaging_product": "whatsapp",
					"contacts": []map[string]any{{
						"wa_id":   from,
						"profile": map[string]any{"name": name},
					}},
					"messages": []map[string]any{{
						"from": from,
						"id":   messageID,
						"type": "text",
						"text": map[string]any{"body": text},
					}},
				},
			}},
		}},
	})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
