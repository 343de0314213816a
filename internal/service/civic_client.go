package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Socrata dataset resources on the open-data portal.
const (
	hpdContactsResource = "/resource/feu5-w2e2.json" // HPD registration contacts
	dobPermitsResource  = "/resource/ipu4-2q9a.json" // DOB permit issuance
)

// hpdContact one row of the HPD registration-contacts dataset.
type hpdContact struct {
	Type            string `json:"type"`
	CorporationName string `json:"corporationname"`
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
}

// dobPermit the owner columns of the DOB permit-issuance dataset.
type dobPermit struct {
	OwnerBusinessName string `json:"owner_s_business_name"`
	OwnerFirstName    string `json:"owner_s_first_name"`
	OwnerLastName     string `json:"owner_s_last_name"`
}

// CivicClient looks owner names up on the city open-data API.
type CivicClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewCivicClient creates the open-data client. appToken is optional; when
// set it is sent as X-App-Token, which raises the anonymous rate limit.
func NewCivicClient(baseURL, appToken string, logger *zap.Logger) *CivicClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	if appToken != "" {
		client.SetHeader("X-App-Token", appToken)
	}

	return &CivicClient{
		httpClient: client,
		logger:     logger,
	}
}

// LookupHPDOwner returns the registered owner for a BBL from HPD contact
// data, or nil when the dataset has no row for it (not an error: most
// small buildings are simply not registered).
func (c *CivicClient) LookupHPDOwner(ctx context.Context, bbl string) (*string, error) {
	var contacts []hpdContact
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"bbl":    bbl,
			"$limit": "5",
		}).
		SetResult(&contacts).
		Get(hpdContactsResource)
	if err != nil {
		return nil, fmt.Errorf("failed to query HPD contacts for bbl %s: %w", bbl, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HPD contacts API returned %d for bbl %s", resp.StatusCode(), bbl)
	}

	for _, contact := range contacts {
		// prefer owner-typed contacts over agents/officers
		if !strings.Contains(strings.ToLower(contact.Type), "owner") {
			continue
		}
		if name := contactName(contact); name != "" {
			return &name, nil
		}
	}
	// fall back to the first contact with any name
	for _, contact := range contacts {
		if name := contactName(contact); name != "" {
			return &name, nil
		}
	}

	c.logger.Debug("No HPD contact found", zap.String("bbl", bbl))
	return nil, nil
}

// LookupDOBOwner returns the owner named on the most recent permit filing
// for a BBL, or nil when no permit carries an owner name.
func (c *CivicClient) LookupDOBOwner(ctx context.Context, bbl string) (*string, error) {
	var permits []dobPermit
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"bbl":    bbl,
			"$order": "issuance_date DESC",
			"$limit": "5",
		}).
		SetResult(&permits).
		Get(dobPermitsResource)
	if err != nil {
		return nil, fmt.Errorf("failed to query DOB permits for bbl %s: %w", bbl, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("DOB permits API returned %d for bbl %s", resp.StatusCode(), bbl)
	}

	for _, p := range permits {
		if p.OwnerBusinessName != "" && p.OwnerBusinessName != "N/A" {
			name := p.OwnerBusinessName
			return &name, nil
		}
		if p.OwnerFirstName != "" || p.OwnerLastName != "" {
			name := strings.TrimSpace(p.OwnerFirstName + " " + p.OwnerLastName)
			return &name, nil
		}
	}

	c.logger.Debug("No DOB permit owner found", zap.String("bbl", bbl))
	return nil, nil
}

func contactName(c hpdContact) string {
	if c.CorporationName != "" {
		return c.CorporationName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
