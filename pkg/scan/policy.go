package scan

import (
	"fmt"

	"regscan/pkg/extract"
	"regscan/pkg/ocr"
)

// Messages reported with each decision.
const (
	MsgSuccess   = "Data extracted successfully."
	MsgNoData    = "OCR completed but no data was extracted. Using mock data."
	msgFailed    = "OCR failed: %s. Using mock data."
	msgRecovered = "OCR processing failed: %s. Using mock data."
)

// Decision is what the caller receives for one scan.
type Decision struct {
	Record       extract.Record
	UsedMockData bool
	Message      string
	Confidence   float64
}

// Policy decides whether extracted data is trusted or replaced by the
// placeholder record.
type Policy struct {
	Placeholder extract.Record
}

// DefaultPlaceholder is the record substituted when nothing usable was read.
func DefaultPlaceholder() extract.Record {
	return extract.Record{
		OwnerName:      "John Doe",
		RegistrationNo: "KA01AB1234",
		Make:           "Maruti Suzuki",
		Model:          "Swift",
		Year:           "2020",
		VIN:            "MA3EWDE1S00123456",
	}
}

// Decide applies the fallback rules: an engine error or an empty extraction
// yields the placeholder; anything else is returned unchanged.
func (p Policy) Decide(rec *extract.Record, confidence float64, engineErr error) Decision {
	if engineErr != nil {
		return Decision{
			Record:       p.Placeholder,
			UsedMockData: true,
			Message:      fmt.Sprintf(msgFailed, ocr.Reason(engineErr)),
		}
	}
	if rec == nil || rec.Empty() {
		return Decision{Record: p.Placeholder, UsedMockData: true, Message: MsgNoData, Confidence: confidence}
	}
	return Decision{Record: *rec, Message: MsgSuccess, Confidence: confidence}
}

// Recovered is the decision for a failure that escaped the pipeline.
func (p Policy) Recovered(reason string) Decision {
	return Decision{
		Record:       p.Placeholder,
		UsedMockData: true,
		Message:      fmt.Sprintf(msgRecovered, reason),
	}
}
