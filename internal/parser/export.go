// Package parser loads user exports. An export is a JSON array of user
// objects, read from a local file or fetched over HTTP(S), in the shape
// produced by `wp user list --format=json`.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"authormigrate/internal/author"
	"authormigrate/internal/errors"
)

// DefaultTimeout bounds a remote export fetch.
const DefaultTimeout = 10 * time.Second

// requiredFields must be present on every exported user.
var requiredFields = []string{"ID", "user_login", "user_email"}

// FetchOptions controls how a remote export is retrieved.
type FetchOptions struct {
	Timeout time.Duration
	Client  *http.Client
}

// IsRemote reports whether location is an HTTP(S) URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LoadExport retrieves and decodes the export at location.
func LoadExport(ctx context.Context, location string, opts FetchOptions) ([]author.ExportedUser, error) {
	var (
		body []byte
		err  error
	)

	if IsRemote(location) {
		body, err = fetchRemote(ctx, location, opts)
	} else {
		body, err = readLocal(location)
	}
	if err != nil {
		return nil, err
	}

	return ParseExport(bytes.NewReader(body), location)
}

func readLocal(path string) ([]byte, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFileError(path, err)
	}
	return body, nil
}

func fetchRemote(ctx context.Context, url string, opts FetchOptions) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewFetchError(url, "invalid export URL", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(url, "unable to retrieve remote user export", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.NewHTTPStatusError(url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError(url, "unable to read remote user export", err)
	}
	return body, nil
}

// ParseExport decodes an export body. path is only used in error messages.
func ParseExport(reader io.Reader, path string) ([]author.ExportedUser, error) {
	var raw []map[string]interface{}

	decoder := json.NewDecoder(reader)
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.NewParsingError(path, "unable to decode the JSON within the specified export", err)
	}

	if len(raw) == 0 {
		return nil, errors.NewParsingError(path, "export contains no users", nil)
	}

	users := make([]author.ExportedUser, 0, len(raw))
	for i, entry := range raw {
		user, err := decodeUser(entry, i, path)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func decodeUser(entry map[string]interface{}, index int, path string) (author.ExportedUser, error) {
	if entry == nil {
		return author.ExportedUser{}, errors.NewParsingError(path, fmt.Sprintf("user record %d is not an object", index), nil)
	}

	for _, field := range requiredFields {
		if value, ok := entry[field]; !ok || value == nil {
			return author.ExportedUser{}, errors.NewInvalidUserRecordError(path, index, field)
		}
	}

	var user author.ExportedUser
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &user,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return author.ExportedUser{}, errors.NewParsingError(path, "unable to build user decoder", err)
	}

	if err := decoder.Decode(entry); err != nil {
		return author.ExportedUser{}, errors.NewParsingError(path, fmt.Sprintf("user record %d is malformed", index), err)
	}

	user.Login = strings.TrimSpace(user.Login)
	user.Email = strings.TrimSpace(user.Email)

	return user, nil
}
