package domainsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
)

// DockployService provisions institution subdomains through the Dockploy
// panel API. When the token or application ID is missing (local dev), every
// call short-circuits.
type DockployService struct {
	conf   core.DockployConfig
	logger core.Logger
	client *http.Client
}

var _ institution.DomainProvisioner = (*DockployService)(nil)

func NewDockployService(conf *core.Config, logger core.Logger) *DockployService {
	return &DockployService{
		conf:   conf.Dockploy,
		logger: logger,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (svc *DockployService) IsConfigured() bool {
	return svc.conf.APIKey != "" && svc.conf.AppID != ""
}

type dockployDomain struct {
	DomainID string `json:"domainId"`
	Host     string `json:"host"`
}

func (svc *DockployService) listDomains(ctx context.Context) ([]dockployDomain, error) {
	u := strings.TrimRight(svc.conf.BaseURL, "/") + "/api/domain.byApplicationId"
	q := make(url.Values)
	q.Set("applicationId", svc.conf.AppID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building list domains request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", svc.conf.APIKey)

	res, err := svc.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "listing domains")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		return nil, errors.Errorf("listing domains - status: %d - body: %s", res.StatusCode, body)
	}

	var domains []dockployDomain
	if err = json.NewDecoder(res.Body).Decode(&domains); err != nil {
		return nil, errors.Wrap(err, "decoding domains")
	}
	return domains, nil
}

func (svc *DockployService) domainExists(ctx context.Context, host string) (bool, error) {
	domains, err := svc.listDomains(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range domains {
		if strings.EqualFold(d.Host, host) {
			return true, nil
		}
	}
	return false, nil
}

// CreateSubdomain routes traffic for host to the app on port 80 with HTTPS
// and Let's Encrypt. Creating an already-routed host is a no-op.
func (svc *DockployService) CreateSubdomain(ctx context.Context, host string) error {
	if !svc.IsConfigured() {
		return nil
	}

	exists, err := svc.domainExists(ctx, host)
	if err != nil {
		return err
	}
	if exists {
		svc.logger.Info(fmt.Sprintf("domains: %s already routed", host))
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"host":            host,
		"path":            "/",
		"port":            80,
		"https":           true,
		"applicationId":   svc.conf.AppID,
		"certificateType": "letsencrypt",
		"domainType":      "application",
		"internalPath":    "/",
		"stripPath":       false,
	})
	if err != nil {
		return errors.Wrap(err, "encoding create domain payload")
	}

	u := strings.TrimRight(svc.conf.BaseURL, "/") + "/api/domain.create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "building create domain request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", svc.conf.APIKey)

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "creating domain")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		return errors.Errorf("creating domain - status: %d - body: %s", res.StatusCode, body)
	}

	var created dockployDomain
	if err = json.NewDecoder(res.Body).Decode(&created); err == nil && created.DomainID != "" {
		svc.logger.Info(fmt.Sprintf("domains: %s routed (domainId=%s)", host, created.DomainID))
	} else {
		svc.logger.Info(fmt.Sprintf("domains: %s routed", host))
	}
	return nil
}
