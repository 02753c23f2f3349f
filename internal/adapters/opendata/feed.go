package opendata

import (
	"bytes"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/okian/buscaparca/internal/domain/model"
)

// feed mirrors the JSON-LD document published by datos.madrid.es.
type feed struct {
	Graph []facility `json:"@graph"`
}

type facility struct {
	Title    string `json:"title"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Address *struct {
		Street   string `json:"street-address"`
		District *named `json:"district"`
		Area     *named `json:"area"`
	} `json:"address"`
	Capacity flexInt `json:"capacity"`
	Free     flexInt `json:"free-places"`
	Occupied flexInt `json:"occupied-places"`
}

type named struct {
	Title string `json:"title"`
}

// flexInt accepts numbers, numeric strings and null. The feed is not
// consistent about which one it uses.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil //nolint:nilerr // unparseable counts read as unknown
		}
		*f = flexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// parseFeed decodes the document and drops entries without a position.
func parseFeed(body []byte) ([]model.PublicParking, error) {
	var doc feed
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	out := make([]model.PublicParking, 0, len(doc.Graph))
	for _, item := range doc.Graph {
		if item.Location == nil || item.Location.Latitude == 0 || item.Location.Longitude == 0 {
			continue
		}
		p := model.PublicParking{
			Name:       item.Title,
			Latitude:   item.Location.Latitude,
			Longitude:  item.Location.Longitude,
			Capacity:   int(item.Capacity),
			FreePlaces: int(item.Free),
			Occupied:   int(item.Occupied),
		}
		if p.Name == "" {
			p.Name = "Unknown"
		}
		if a := item.Address; a != nil {
			p.Address = a.Street
			if a.District != nil {
				p.District = a.District.Title
			}
		}
		p.SuccessRate = availability(p)
		out = append(out, p)
	}
	return out, nil
}

func availability(p model.PublicParking) float64 {
	capacity := p.Capacity
	if capacity < 1 {
		capacity = 1
	}
	return float64(p.FreePlaces) / float64(capacity)
}
