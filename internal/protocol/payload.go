package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/fedepagnotta/tp0-distribuidos/internal/bet"
)

// requiredBetFields are the wire keys a bet payload must carry, normalized
// to upper case. Order on the wire is arbitrary.
var requiredBetFields = []string{"AGENCY_ID", "NOMBRE", "APELLIDO", "DOCUMENTO", "NACIMIENTO", "NUMERO"}

// DecodeBetPayload parses a single bet payload: "KEY=value,KEY=value,..."
// UTF-8 text. Keys are case-insensitive and position-independent; whitespace
// around keys/values is trimmed; empty segments are ignored. Any missing
// required key returns ErrMalformedBet.
func DecodeBetPayload(body []byte) (bet.Bet, error) {
	fields := make(map[string]string, len(requiredBetFields))
	for _, segment := range strings.Split(string(body), ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		idx := strings.Index(segment, "=")
		if idx < 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(segment[:idx]))
		value := strings.TrimSpace(segment[idx+1:])
		fields[key] = value
	}

	for _, required := range requiredBetFields {
		if _, ok := fields[required]; !ok {
			return bet.Bet{}, fmt.Errorf("%w: missing field %s", ErrMalformedBet, required)
		}
	}

	agencyID, err := strconv.Atoi(fields["AGENCY_ID"])
	if err != nil {
		return bet.Bet{}, fmt.Errorf("%w: invalid AGENCY_ID: %v", ErrMalformedBet, err)
	}
	number, err := strconv.Atoi(fields["NUMERO"])
	if err != nil {
		return bet.Bet{}, fmt.Errorf("%w: invalid NUMERO: %v", ErrMalformedBet, err)
	}

	return bet.Bet{
		AgencyID:  agencyID,
		FirstName: fields["NOMBRE"],
		LastName:  fields["APELLIDO"],
		Document:  fields["DOCUMENTO"],
		Birthdate: fields["NACIMIENTO"],
		Number:    number,
	}, nil
}

// EncodeBetPayload renders a Bet back into the "KEY=value,..." wire shape
// used by DecodeBetPayload. Used by the reference client (client/).
func EncodeBetPayload(b bet.Bet) []byte {
	return []byte(fmt.Sprintf(
		"AGENCY_ID=%d,NOMBRE=%s,APELLIDO=%s,DOCUMENTO=%s,NACIMIENTO=%s,NUMERO=%d",
		b.AgencyID, b.FirstName, b.LastName, b.Document, b.Birthdate, b.Number,
	))
}

// DecodeBatch decodes the body of a MSG_TYPE_BET request: a concatenation of
// inner-framed bets, each "| 4-byte BE length | 1-byte last_flag | payload |".
// It scans forward accumulating bets, stopping at the first last_flag != 0
// entry. A truncated inner frame, an entry overflowing the envelope, or an
// envelope that never reaches a terminal entry all return ErrMalformedBatch
// (including the empty-envelope case, since a valid batch has at least one
// entry with last_flag set).
func DecodeBatch(body []byte) ([]bet.Bet, error) {
	var bets []bet.Bet
	offset := 0
	reachedTerminal := false

	for offset < len(body) {
		if offset+5 > len(body) {
			return nil, fmt.Errorf("%w: truncated inner frame at offset %d", ErrMalformedBatch, offset)
		}
		length := binary.BigEndian.Uint32(body[offset : offset+4])
		lastFlag := body[offset+4]
		contentStart := offset + 5
		contentEnd := contentStart + int(length)
		if contentEnd > len(body) {
			return nil, fmt.Errorf("%w: inner frame overflows envelope at offset %d", ErrMalformedBatch, offset)
		}

		b, err := DecodeBetPayload(body[contentStart:contentEnd])
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
		offset = contentEnd

		if lastFlag != 0 {
			reachedTerminal = true
			break
		}
	}

	if !reachedTerminal || len(bets) == 0 {
		return nil, fmt.Errorf("%w: no terminal entry", ErrMalformedBatch)
	}
	return bets, nil
}

// EncodeBatch renders bets as a BatchEnvelope: each bet inner-framed with a
// 4-byte BE length and a 1-byte last_flag, set only on the final entry. Used
// by the reference client. Panics-free; callers are responsible for keeping
// the encoded size within MaxBodyLen (the client batches bets accordingly).
func EncodeBatch(bets []bet.Bet) []byte {
	var out []byte
	for i, b := range bets {
		payload := EncodeBetPayload(b)
		var header [5]byte
		binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
		if i == len(bets)-1 {
			header[4] = 1
		}
		out = append(out, header[:]...)
		out = append(out, payload...)
	}
	return out
}

// DecodeAgencyID parses a FinishedSending/WinnersRequest body shaped
// "AGENCY_ID=<value>". Any other shape returns ErrMalformedID. The returned
// value is the trimmed right-hand side, not yet validated as numeric.
func DecodeAgencyID(body []byte) (string, error) {
	s := string(body)
	idx := strings.Index(s, "=")
	if idx < 0 {
		return "", fmt.Errorf("%w: missing '='", ErrMalformedID)
	}
	key := strings.ToUpper(strings.TrimSpace(s[:idx]))
	if key != "AGENCY_ID" {
		return "", fmt.Errorf("%w: expected AGENCY_ID field, got %q", ErrMalformedID, key)
	}
	return strings.TrimSpace(s[idx+1:]), nil
}

// EncodeAgencyID renders a FinishedSending/WinnersRequest body. Used by the
// reference client.
func EncodeAgencyID(id string) []byte {
	return []byte("AGENCY_ID=" + id)
}

const (
	successBody = "success"
	errorBody   = "error"
)

// EncodeBetResponse renders the literal ASCII body shared by BET and
// FINISHED_SENDING responses (spec.md §4.B; SPEC_FULL.md §4 item 3: the original reuses
// one success/error encoder for both message kinds).
func EncodeBetResponse(ok bool) []byte {
	if ok {
		return []byte(successBody)
	}
	return []byte(errorBody)
}

// IsSuccessResponse reports whether body is the literal "success" ack. Used
// by the reference client to interpret BET/FINISHED_SENDING responses.
func IsSuccessResponse(body []byte) bool {
	return string(body) == successBody
}

// EncodeWinners renders a WINNERS_RESPONSE/LOTTERY_NOT_READY body:
// "WINNERS=doc1,doc2,..."; an empty list renders "WINNERS=".
func EncodeWinners(documents []string) []byte {
	return []byte("WINNERS=" + strings.Join(documents, ","))
}

// DecodeWinners parses a WINNERS_RESPONSE/LOTTERY_NOT_READY body back into
// the document list. Used by the reference client. An absent "WINNERS="
// prefix is treated as an empty list rather than an error, since the server
// never emits anything else on this message type.
func DecodeWinners(body []byte) []string {
	s, ok := strings.CutPrefix(string(body), "WINNERS=")
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
