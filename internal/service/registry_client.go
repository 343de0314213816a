package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// registrySearchResponse corporate registry company search response.
type registrySearchResponse struct {
	Results struct {
		Companies []struct {
			Company struct {
				Name             string `json:"name"`
				CompanyNumber    string `json:"company_number"`
				CurrentStatus    string `json:"current_status"`
				JurisdictionCode string `json:"jurisdiction_code"`
			} `json:"company"`
		} `json:"companies"`
	} `json:"results"`
}

// RegistryClient resolves the corporate identity behind an owner name via
// the corporate registry search API (secondary enrichment track).
type RegistryClient struct {
	httpClient *resty.Client
	token      string
	logger     *zap.Logger
}

func NewRegistryClient(baseURL, token string, logger *zap.Logger) *RegistryClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &RegistryClient{
		httpClient: client,
		token:      token,
		logger:     logger,
	}
}

// LookupCompany searches the registry for ownerName and returns the
// registered company name of the best match, or nil when nothing active
// matches (a normal outcome for individually-held buildings).
func (c *RegistryClient) LookupCompany(ctx context.Context, ownerName string) (*string, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("q", ownerName).
		SetQueryParam("per_page", "5")
	if c.token != "" {
		req.SetQueryParam("api_token", c.token)
	}

	var result registrySearchResponse
	resp, err := req.SetResult(&result).Get("/v0.4/companies/search")
	if err != nil {
		return nil, fmt.Errorf("failed to search corporate registry for %q: %w", ownerName, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("corporate registry API returned %d for %q", resp.StatusCode(), ownerName)
	}

	for _, entry := range result.Results.Companies {
		if entry.Company.CurrentStatus != "" && entry.Company.CurrentStatus != "Active" {
			continue
		}
		if entry.Company.Name != "" {
			name := entry.Company.Name
			c.logger.Debug("Registry match",
				zap.String("query", ownerName),
				zap.String("company", name),
				zap.String("company_number", entry.Company.CompanyNumber),
			)
			return &name, nil
		}
	}

	c.logger.Debug("No registry match", zap.String("query", ownerName))
	return nil, nil
}
