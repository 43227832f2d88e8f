package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/tracing"
)

const maxResponseSize = 1 << 20

// errNoData marks a provider answering 404 for an address it knows nothing
// about.
var errNoData = errors.New("no data for address")

// getJSON issues a GET and decodes a JSON body into dest. Non-2xx statuses
// and transport failures come back as KindHTTP errors.
func getJSON(ctx context.Context, client *http.Client, op, url string, headers map[string]string, dest any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()
	tracing.TagComponentProvider(span)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "failed to create HTTP request"))
		return er.New(er.KindHTTP, op, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := client.Do(req)
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "failed to make API request"))
		return er.New(er.KindHTTP, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "failed to read response body"))
		return er.New(er.KindHTTP, op, err)
	}
	span.LogKV("response.status", resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return er.New(er.KindHTTP, op, errNoData)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		tracing.TraceErr(span, err)
		return er.New(er.KindHTTP, op, err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "failed to unmarshal response"))
		return er.New(er.KindHTTP, op, err)
	}
	return nil
}
