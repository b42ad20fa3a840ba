package handlers

import (
	"time"

	"github.com/serroba/turl/internal/shortener"
)

// CreateShortURLRequest accepts a JSON or form encoded body with dest_url and an optional src_url.
type CreateShortURLRequest struct {
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

// CreateShortURLResponse is the response for a successfully created short URL.
type CreateShortURLResponse struct {
	Body struct {
		Success bool   `json:"success"`
		URL     string `doc:"The full short URL" example:"https://turl.com/xMpCOKC5" json:"url"`
		Key     string `doc:"The short key"      example:"xMpCOKC5"                 json:"key"`
	}
}

// KeyRequest addresses one short key.
type KeyRequest struct {
	Key string `doc:"The short key" example:"xMpCOKC5" path:"key"`
}

// URLRecord is the public view of an allocation.
type URLRecord struct {
	ID           int64      `json:"id"`
	HashKey      string     `json:"hash_key"`
	URLID        int64      `json:"url_id"`
	DateCreated  time.Time  `json:"date_created"`
	DateModified *time.Time `json:"date_modified"`
	IsDeleted    bool       `json:"is_deleted"`
	URL          string     `json:"url"`
}

// GetURLResponse returns the allocation behind a key.
type GetURLResponse struct {
	Body struct {
		Success bool      `json:"success"`
		URL     URLRecord `json:"url"`
	}
}

// DeleteURLResponse confirms a tombstone.
type DeleteURLResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// StatisticsRecord is an allocation with its click count.
type StatisticsRecord struct {
	URLRecord
	NumClicks int64 `json:"num_clicks"`
}

// StatisticsResponse returns click statistics for a key.
type StatisticsResponse struct {
	Body struct {
		Success    bool             `json:"success"`
		Statistics StatisticsRecord `json:"statistics"`
	}
}

// HitRecord is one recorded click.
type HitRecord struct {
	ID          int64     `json:"id"`
	IPAddress   *string   `json:"ip_address"`
	UserAgent   *string   `json:"user_agent"`
	DateCreated time.Time `json:"date_created"`
}

// HitsResponse lists the clicks of a key.
type HitsResponse struct {
	Body struct {
		Success bool        `json:"success"`
		Hits    []HitRecord `json:"hits"`
	}
}

// RedirectResponse sends the client to the long URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}

func toURLRecord(res *shortener.Resolution) URLRecord {
	return URLRecord{
		ID:           res.ID,
		HashKey:      string(res.HashKey),
		URLID:        res.URLID,
		DateCreated:  res.DateCreated,
		DateModified: res.DateModified,
		IsDeleted:    res.IsDeleted,
		URL:          res.LongURL,
	}
}

func toHitRecords(hits []shortener.Hit) []HitRecord {
	out := make([]HitRecord, 0, len(hits))
	for _, h := range hits {
		out = append(out, HitRecord{
			ID:          h.ID,
			IPAddress:   h.IPAddress,
			UserAgent:   h.UserAgent,
			DateCreated: h.DateCreated,
		})
	}

	return out
}
