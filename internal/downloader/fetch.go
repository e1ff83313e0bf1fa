package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	errs "socialcache/pkg/errors"
	"socialcache/pkg/storage"
)

// accessTokenPrefix marks metadata keys whose value is sent as a bearer token
const accessTokenPrefix = "accessToken"

// DefaultRequest builds a GET for url. The first metadata key (in sorted
// order) starting with "accessToken" is sent as a bearer token.
func DefaultRequest(ctx context.Context, url string, md Metadata) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token := AccessToken(md); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// AccessToken returns the bearer token carried by md, if any
func AccessToken(md Metadata) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		if strings.HasPrefix(k, accessTokenPrefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return fmt.Sprint(md[keys[0]])
}

func (e *Engine) newRequest(ctx context.Context, req *request) (*http.Request, error) {
	var (
		httpReq *http.Request
		err     error
	)
	if rb, ok := e.provider.(RequestBuilder); ok {
		httpReq, err = rb.BuildRequest(ctx, req.target(), req.payloads[0])
	} else {
		httpReq, err = DefaultRequest(ctx, req.target(), req.payloads[0])
	}
	if err != nil {
		return nil, err
	}
	if e.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	return httpReq, nil
}

// fetch waits for a rate limiter token, tells the worker the operation is
// going out, runs it and hands the outcome to the worker. The timeout only
// covers the network part.
func (e *Engine) fetch(ctx context.Context, op *operation, httpReq *http.Request, url string, first Metadata) {
	defer e.ops.Done()

	var o outcome
	if err := e.limiter.Wait(ctx); err != nil {
		o = outcome{err: errs.Wrap(errs.ErrorTypeNetwork, "rate limiter wait aborted", err).WithURL(httpReq.URL.String())}
	} else {
		select {
		case e.launched <- op:
		case <-e.stopping:
			return
		}
		o = e.perform(ctx, httpReq, url, first)
	}
	o.op = op

	select {
	case e.results <- o:
	case <-e.stopping:
	}
}

func (e *Engine) perform(ctx context.Context, httpReq *http.Request, url string, first Metadata) outcome {
	target := httpReq.URL.String()

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return outcome{err: errs.Wrap(errs.ErrorTypeNetwork, "request failed", err).WithURL(target)}
	}
	defer resp.Body.Close()

	if loc, err := resp.Location(); err == nil {
		return outcome{location: loc.String()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("unexpected status %s", resp.Status)).WithURL(target)
		statusErr.Code = resp.StatusCode
		return outcome{err: statusErr}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodySize+1))
	if err != nil {
		return outcome{err: errs.Wrap(errs.ErrorTypeNetwork, "failed to read response body", err).WithURL(target)}
	}
	if int64(len(data)) > e.cfg.MaxBodySize {
		tooLarge := errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("response body exceeds %d bytes", e.cfg.MaxBodySize)).WithURL(target)
		tooLarge.Code = resp.StatusCode
		return outcome{err: tooLarge}
	}
	if ctx.Err() != nil {
		return outcome{err: errs.Wrap(errs.ErrorTypeTimeout, "operation cancelled", ctx.Err()).WithURL(target)}
	}

	mimeType := ""
	if len(data) > 0 {
		mimeType = storage.Sniff(data)
	}
	path := e.provider.ResolvePath(url, first, mimeType)
	if path == "" {
		return outcome{err: errs.New(errs.ErrorTypePrecondition, "no cache path for response").WithURL(url)}
	}

	path, err = e.writer.Write(data, path)
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeUnknown {
			err = errs.Wrap(errs.ErrorTypeWriteFailed, "failed to store image", err)
		}
		return outcome{err: err}
	}
	return outcome{path: path}
}

func newOperationID() string {
	return uuid.NewString()
}
