package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Country is one entry of the dial-code directory.
type Country struct {
	Name     string `json:"name"`
	DialCode string `json:"dialCode"`
	Code     string `json:"code"`
}

type restCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	CCA2 string `json:"cca2"`
	IDD  struct {
		Root     string   `json:"root"`
		Suffixes []string `json:"suffixes"`
	} `json:"idd"`
}

// Client reads the country directory from a REST Countries compatible endpoint.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient creates a client for url.
func NewClient(url string) *Client {
	return &Client{URL: url, HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

// List returns every country with a usable dial code, sorted by name.
func (c *Client) List(ctx context.Context) ([]Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch countries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch countries: status %d", resp.StatusCode)
	}

	var raw []restCountry
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode countries: %w", err)
	}

	countries := make([]Country, 0, len(raw))
	for _, rc := range raw {
		if rc.IDD.Root == "" || len(rc.IDD.Suffixes) == 0 {
			continue
		}
		name := rc.Name.Common
		if name == "" {
			name = "Unknown"
		}
		countries = append(countries, Country{
			Name:     name,
			DialCode: rc.IDD.Root + rc.IDD.Suffixes[0],
			Code:     rc.CCA2,
		})
	}

	col := collate.New(language.English, collate.Loose)
	sort.SliceStable(countries, func(i, j int) bool {
		return col.CompareString(countries[i].Name, countries[j].Name) < 0
	})

	logrus.WithField("count", len(countries)).Debug("Fetched country directory")
	return countries, nil
}
