package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequest(method, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func (c *client) post(path string) error {
	status, body, err := c.do(http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("status=%d body=%s", status, string(body))
	}
	c.print(status, body)
	return nil
}

// adminCmd habla con /v1/admin de una instancia en marcha.
func adminCmd() *cobra.Command {
	cl := &client{
		BaseURL:   envOr("TRUSTCORE_ADMIN_URL", "http://localhost:8080"),
		APIKey:    envOr("TRUSTCORE_ADMIN_KEY", ""),
		OutFormat: envOr("TRUSTCORE_OUT", "text"),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}

	root := &cobra.Command{
		Use:   "admin",
		Short: "Operaciones administrativas (vía /v1/admin)",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if cl.APIKey == "" {
				return errors.New("falta API key (flag --admin-api-key o env TRUSTCORE_ADMIN_KEY)")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cl.BaseURL, "admin-api-url", cl.BaseURL, "URL base (env TRUSTCORE_ADMIN_URL)")
	root.PersistentFlags().StringVar(&cl.APIKey, "admin-api-key", cl.APIKey, "API key (env TRUSTCORE_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&cl.OutFormat, "out", cl.OutFormat, "Formato de salida: json|text")

	var tenant, feature string
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Invalida el cache de configs de un tenant (una feature o todas)",
		RunE: func(*cobra.Command, []string) error {
			if tenant == "" {
				return errors.New("--tenant es requerido")
			}
			path := "/v1/admin/t/" + url.PathEscape(tenant) + "/features/invalidate"
			if feature != "" {
				path = "/v1/admin/t/" + url.PathEscape(tenant) + "/features/" + url.PathEscape(feature) + "/invalidate"
			}
			return cl.post(path)
		},
	}
	invalidate.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	invalidate.Flags().StringVar(&feature, "feature", "", "Feature (vacío = todas)")

	var revTenant, credID string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca una credencial biométrica",
		RunE: func(*cobra.Command, []string) error {
			if revTenant == "" || credID == "" {
				return errors.New("--tenant y --credential son requeridos")
			}
			return cl.post("/v1/admin/t/" + url.PathEscape(revTenant) + "/credentials/" + url.PathEscape(credID) + "/revoke")
		},
	}
	revoke.Flags().StringVar(&revTenant, "tenant", "", "Tenant ID")
	revoke.Flags().StringVar(&credID, "credential", "", "Credential ID")

	root.AddCommand(invalidate, revoke)
	return root
}
