package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntry is one append-only record per layer execution, written for
// compliance review. Detail carries the layer-specific payload as a
// tagged union so consumers get a concrete shape per layer.
type AuditEntry struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenantId"`
	TxID      string      `json:"txId"`
	Layer     int         `json:"layer"`
	LayerName string      `json:"layerName"`
	Status    string      `json:"status"`
	Score     int         `json:"score"`
	Timestamp time.Time   `json:"timestamp"`
	Detail    AuditDetail `json:"detail,omitempty"`
}

// AuditDetail is the per-layer detail payload. Exactly one concrete
// type exists per layer; the Layer field selects the variant when
// entries are read back.
type AuditDetail interface {
	auditDetail()
}

// ExtractionDetail is the Layer 1 audit payload.
type ExtractionDetail struct {
	Provider    Provider        `json:"provider"`
	Type        TransactionType `json:"type"`
	FieldsFound []string        `json:"fieldsFound,omitempty"`
	ParseErrors []string        `json:"parseErrors,omitempty"`
}

// ValidationDetail is the Layer 2 audit payload.
type ValidationDetail struct {
	Violations []string `json:"violations,omitempty"`
}

// PatternDetail is the Layer 3 audit payload.
type PatternDetail struct {
	KeywordHits    int      `json:"keywordHits"`
	PhraseHits     int      `json:"phraseHits"`
	InstitutionHit bool     `json:"institutionHit"`
	Matches        []string `json:"matches,omitempty"`
}

// BehaviorDetail is the Layer 4 audit payload.
type BehaviorDetail struct {
	AverageAmount *float64 `json:"averageAmount,omitempty"`
	Multiple      float64  `json:"multiple,omitempty"`
	Hour          int      `json:"hour"`
	HourKnown     bool     `json:"hourKnown"`
	Degraded      bool     `json:"degraded"`
}

// VelocityDetail is the Layer 5 audit payload.
type VelocityDetail struct {
	CountLastHour int  `json:"countLastHour"`
	CountLast3h   int  `json:"countLast3h"`
	CountLast24h  int  `json:"countLast24h"`
	Degraded      bool `json:"degraded"`
}

// AmountDetail is the Layer 6 audit payload.
type AmountDetail struct {
	Amount    float64 `json:"amount"`
	BandScore int     `json:"bandScore"`
	RoundHit  bool    `json:"roundHit"`
}

// TemporalDetail is the Layer 7 audit payload.
type TemporalDetail struct {
	Hour      int  `json:"hour"`
	HourKnown bool `json:"hourKnown"`
	HourScore int  `json:"hourScore"`
	DayScore  int  `json:"dayScore"`
	Weekend   bool `json:"weekend"`
}

func (ExtractionDetail) auditDetail() {}
func (ValidationDetail) auditDetail() {}
func (PatternDetail) auditDetail()    {}
func (BehaviorDetail) auditDetail()   {}
func (VelocityDetail) auditDetail()   {}
func (AmountDetail) auditDetail()     {}
func (TemporalDetail) auditDetail()   {}

// UnmarshalJSON decodes the detail payload into the concrete variant
// selected by the layer number.
func (e *AuditEntry) UnmarshalJSON(data []byte) error {
	type entry struct {
		ID        string          `json:"id"`
		TenantID  string          `json:"tenantId"`
		TxID      string          `json:"txId"`
		Layer     int             `json:"layer"`
		LayerName string          `json:"layerName"`
		Status    string          `json:"status"`
		Score     int             `json:"score"`
		Timestamp time.Time       `json:"timestamp"`
		Detail    json.RawMessage `json:"detail"`
	}

	var raw entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ID = raw.ID
	e.TenantID = raw.TenantID
	e.TxID = raw.TxID
	e.Layer = raw.Layer
	e.LayerName = raw.LayerName
	e.Status = raw.Status
	e.Score = raw.Score
	e.Timestamp = raw.Timestamp

	if len(raw.Detail) == 0 || string(raw.Detail) == "null" {
		e.Detail = nil
		return nil
	}

	detail, err := UnmarshalAuditDetail(raw.Layer, raw.Detail)
	if err != nil {
		return err
	}
	e.Detail = detail
	return nil
}

// UnmarshalAuditDetail decodes a raw detail payload into the concrete
// variant for the given layer.
func UnmarshalAuditDetail(layer int, data json.RawMessage) (AuditDetail, error) {
	var detail AuditDetail
	switch layer {
	case LayerExtraction:
		var d ExtractionDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	case LayerValidation:
		var d ValidationDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	case LayerPattern:
		var d PatternDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	case LayerBehavior:
		var d BehaviorDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	case LayerVelocity:
		var d VelocityDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	case LayerAmount:
		var d AmountDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	case LayerTemporal:
		var d TemporalDetail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		detail = d
	default:
		return nil, fmt.Errorf("unknown audit layer %d", layer)
	}
	return detail, nil
}
