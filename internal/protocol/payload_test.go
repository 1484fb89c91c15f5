package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fedepagnotta/tp0-distribuidos/internal/bet"
)

func sampleBet() bet.Bet {
	return bet.Bet{
		AgencyID:  1,
		FirstName: "Juan",
		LastName:  "Perez",
		Document:  "30000000",
		Birthdate: "1990-01-01",
		Number:    7574,
	}
}

func TestEncodeDecodeBetPayloadRoundTrip(t *testing.T) {
	b := sampleBet()
	decoded, err := DecodeBetPayload(EncodeBetPayload(b))
	if err != nil {
		t.Fatalf("DecodeBetPayload: %v", err)
	}
	if decoded != b {
		t.Fatalf("decoded = %+v, want %+v", decoded, b)
	}
}

func TestDecodeBetPayloadCaseAndWhitespaceTolerant(t *testing.T) {
	body := []byte(" agency_id = 1 , Nombre=Juan,APELLIDO=Perez,documento=30000000,Nacimiento=1990-01-01,numero=42 ")
	b, err := DecodeBetPayload(body)
	if err != nil {
		t.Fatalf("DecodeBetPayload: %v", err)
	}
	if b.AgencyID != 1 || b.Number != 42 || b.FirstName != "Juan" {
		t.Fatalf("unexpected bet: %+v", b)
	}
}

func TestDecodeBetPayloadMissingField(t *testing.T) {
	body := []byte("AGENCY_ID=1,NOMBRE=Juan")
	_, err := DecodeBetPayload(body)
	if !errors.Is(err, ErrMalformedBet) {
		t.Fatalf("err = %v, want ErrMalformedBet", err)
	}
}

func TestDecodeBetPayloadInvalidNumero(t *testing.T) {
	body := []byte("AGENCY_ID=1,NOMBRE=Juan,APELLIDO=Perez,DOCUMENTO=30000000,NACIMIENTO=1990-01-01,NUMERO=abc")
	_, err := DecodeBetPayload(body)
	if !errors.Is(err, ErrMalformedBet) {
		t.Fatalf("err = %v, want ErrMalformedBet", err)
	}
}

func TestEncodeDecodeBatchRoundTrip(t *testing.T) {
	bets := []bet.Bet{sampleBet(), sampleBet(), sampleBet()}
	bets[1].Document = "30000001"
	bets[2].Document = "30000002"

	decoded, err := DecodeBatch(EncodeBatch(bets))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if !reflect.DeepEqual(decoded, bets) {
		t.Fatalf("decoded = %+v, want %+v", decoded, bets)
	}
}

func TestDecodeBatchEmptyEnvelopeIsMalformed(t *testing.T) {
	_, err := DecodeBatch(nil)
	if !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("err = %v, want ErrMalformedBatch", err)
	}
}

func TestDecodeBatchTruncatedInnerFrame(t *testing.T) {
	_, err := DecodeBatch([]byte{0x00, 0x00, 0x00})
	if !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("err = %v, want ErrMalformedBatch", err)
	}
}

func TestDecodeBatchOverflowingInnerFrame(t *testing.T) {
	body := []byte{0x00, 0x00, 0x00, 0xFF, 0x01}
	_, err := DecodeBatch(body)
	if !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("err = %v, want ErrMalformedBatch", err)
	}
}

func TestDecodeBatchMissingTerminalEntry(t *testing.T) {
	bets := []bet.Bet{sampleBet()}
	envelope := EncodeBatch(bets)
	envelope[len(envelope)-1-len(EncodeBetPayload(bets[0]))] = 0

	_, err := DecodeBatch(envelope)
	if !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("err = %v, want ErrMalformedBatch", err)
	}
}

func TestEncodeDecodeAgencyIDRoundTrip(t *testing.T) {
	id, err := DecodeAgencyID(EncodeAgencyID("3"))
	if err != nil {
		t.Fatalf("DecodeAgencyID: %v", err)
	}
	if id != "3" {
		t.Fatalf("id = %q, want %q", id, "3")
	}
}

func TestDecodeAgencyIDMalformed(t *testing.T) {
	_, err := DecodeAgencyID([]byte("NOT_AGENCY=3"))
	if !errors.Is(err, ErrMalformedID) {
		t.Fatalf("err = %v, want ErrMalformedID", err)
	}

	_, err = DecodeAgencyID([]byte("garbage"))
	if !errors.Is(err, ErrMalformedID) {
		t.Fatalf("err = %v, want ErrMalformedID", err)
	}
}

func TestSuccessErrorResponseBodies(t *testing.T) {
	if !IsSuccessResponse(EncodeBetResponse(true)) {
		t.Fatalf("expected success body to be recognized")
	}
	if IsSuccessResponse(EncodeBetResponse(false)) {
		t.Fatalf("expected error body to not be recognized as success")
	}
}

func TestEncodeDecodeWinnersRoundTrip(t *testing.T) {
	docs := []string{"30000000", "30000001"}
	decoded := DecodeWinners(EncodeWinners(docs))
	if !reflect.DeepEqual(decoded, docs) {
		t.Fatalf("decoded = %v, want %v", decoded, docs)
	}
}

func TestDecodeWinnersEmptyList(t *testing.T) {
	decoded := DecodeWinners(EncodeWinners(nil))
	if decoded != nil {
		t.Fatalf("decoded = %v, want nil", decoded)
	}
}
