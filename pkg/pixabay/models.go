package pixabay

import (
	"bytes"
	"encoding/json"

	"pixscrape/pkg/models"
)

// searchEnvelope is the top-level search response. Hits stays raw so a
// missing key can be told apart from an empty list.
type searchEnvelope struct {
	Total     int             `json:"total"`
	TotalHits *int            `json:"totalHits"`
	Hits      json.RawMessage `json:"hits"`
}

// Page is one decoded page of search results
type Page struct {
	Number int
	// Total is the number of matches the API knows about
	Total int
	// TotalHits is the number of matches reachable through pagination,
	// -1 when the response did not report it
	TotalHits int
	Hits      []models.Record
}

// missingHitsError is returned by decodePage when the response has no hits key
type missingHitsError struct{}

func (missingHitsError) Error() string { return `response has no "hits" key` }

// decodePage parses a response body into a Page. A hit that is not a JSON
// object becomes an empty record.
func decodePage(body []byte, number int) (*Page, error) {
	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(env.Hits)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, missingHitsError{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	hits := make([]models.Record, 0, len(items))
	for _, item := range items {
		rec, err := decodeHit(item)
		if err != nil {
			return nil, err
		}
		hits = append(hits, rec)
	}

	totalHits := -1
	if env.TotalHits != nil {
		totalHits = *env.TotalHits
	}

	return &Page{
		Number:    number,
		Total:     env.Total,
		TotalHits: totalHits,
		Hits:      hits,
	}, nil
}

func decodeHit(item json.RawMessage) (models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]interface{}); ok {
		return models.Record(obj), nil
	}
	return models.Record{}, nil
}
