package gateway

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/identity"
)

// forwardedHeaders are copied from the client request. Identity headers are
// never among them; they are set from the verified token only.
var forwardedHeaders = []string{"Content-Type", "Accept", "Accept-Language"}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string, customer domain.Customer) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	req.Header.Set(identity.HeaderUserID, customer.ID)
	if customer.Email != "" {
		req.Header.Set(identity.HeaderUserEmail, customer.Email)
	}

	return p.client.Do(req)
}
