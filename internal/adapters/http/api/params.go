package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads a JSON request body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// coordinates reads the required latitude and longitude parameters.
func coordinates(q url.Values) (lat, lon float64, err error) {
	if lat, err = requiredFloat(q, "latitude"); err != nil {
		return 0, 0, err
	}
	if lon, err = requiredFloat(q, "longitude"); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func requiredFloat(q url.Values, key string) (float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func optionalFloat(q url.Values, key string, def float64) (float64, error) {
	if strings.TrimSpace(q.Get(key)) == "" {
		return def, nil
	}
	v, err := requiredFloat(q, key)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

// optionalLimit parses limit and caps it at max.
func optionalLimit(q url.Values, def, max int) (int, error) {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

// optionalTime parses timestamp as epoch milliseconds; absent means now.
func optionalTime(q url.Values, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(q.Get("timestamp"))
	if raw == "" {
		return now, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, errors.New("timestamp must be epoch milliseconds")
	}
	return time.UnixMilli(ms).UTC(), nil
}
