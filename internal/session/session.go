// Package session implements the per-connection state machine of spec.md
// §4.E: READING -> DISPATCH -> WRITING, looping until EndOfStream, a
// ProtocolError, a write failure, or a message kind whose handling
// terminates the session.
package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/fedepagnotta/tp0-distribuidos/internal/barrier"
	"github.com/fedepagnotta/tp0-distribuidos/internal/logging"
	"github.com/fedepagnotta/tp0-distribuidos/internal/protocol"
	"github.com/fedepagnotta/tp0-distribuidos/internal/store"
)

var log = logging.MustGetLogger("session")

// Recorder receives observability counters as the session processes
// frames. A nil Recorder (the zero value of Session.metrics) is a no-op;
// internal/metrics provides the Prometheus-backed implementation.
type Recorder interface {
	IncProtocolError(kind string)
	IncBetsStored(n int)
	IncOversizeFrame()
}

type noopRecorder struct{}

func (noopRecorder) IncProtocolError(string) {}
func (noopRecorder) IncBetsStored(int)       {}
func (noopRecorder) IncOversizeFrame()       {}

// Session owns one accepted connection for the lifetime of Run. It holds
// no buffering beyond the socket read buffer between frames (spec.md §3
// SessionState).
type Session struct {
	conn    net.Conn
	store   store.Store
	barrier *barrier.State
	metrics Recorder
}

// New builds a session handler for an accepted connection. st and b are
// shared across all concurrently running sessions; their own internal
// locking (store.FileStore's RWMutex, barrier.State's Mutex) is what
// spec.md §4.G's store_write_lock/store_read_lock/barrier_lock describe.
func New(conn net.Conn, st store.Store, b *barrier.State, metrics Recorder) *Session {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Session{conn: conn, store: st, barrier: b, metrics: metrics}
}

// Run drives the READING/DISPATCH/WRITING loop until the connection closes
// or a terminal condition from spec.md §4.E's transition table is reached.
// A recover() guard prevents any unexpected panic from a malformed payload
// from propagating past this goroutine (the Go analogue of the original's
// broad per-connection try/except containment).
func (s *Session) Run() {
	addr := s.conn.RemoteAddr()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("action: handle_connection | result: fail | addr: %v | panic: %v", addr, r)
		}
		_ = s.conn.Close()
	}()

	for {
		msgType, body, err := protocol.ReadFrame(s.conn)
		if err != nil {
			if errors.Is(err, protocol.ErrEndOfStream) {
				log.Infof("action: client_disconnected | result: success | addr: %v", addr)
				return
			}
			s.metrics.IncProtocolError("protocol")
			log.Errorf("action: read_frame | result: fail | addr: %v | error: %v", addr, err)
			return
		}

		closeAfter, werr := s.dispatch(msgType, body)
		if werr != nil {
			log.Errorf("action: write_frame | result: fail | addr: %v | error: %v", addr, werr)
			return
		}
		if closeAfter {
			return
		}
	}
}

// dispatch classifies a decoded frame by message type and returns whether
// the session should close after the reply is written, plus any write
// error encountered sending that reply.
func (s *Session) dispatch(msgType byte, body []byte) (closeAfter bool, err error) {
	switch msgType {
	case protocol.MsgBet:
		return s.handleBet(body)
	case protocol.MsgFinishedSending:
		return s.handleFinishedSending(body)
	case protocol.MsgWinnersRequest:
		return s.handleWinnersRequest(body)
	default:
		log.Errorf("action: dispatch | result: fail | error: unknown message type %#x", msgType)
		s.metrics.IncProtocolError("unknown_type")
		err := protocol.WriteFrame(s.conn, protocol.MsgBet, protocol.EncodeBetResponse(false))
		return true, err
	}
}

// handleBet implements spec.md §4.E's BET row: parse the batch envelope,
// append under the store's write lock on success, and reply success/error.
// A parse or store failure closes the session after replying error; a
// successful append keeps the session open for the next frame.
func (s *Session) handleBet(body []byte) (closeAfter bool, err error) {
	bets, err := protocol.DecodeBatch(body)
	if err != nil {
		log.Errorf("action: parse_bet | result: fail | error: %v", err)
		s.metrics.IncProtocolError("malformed_bet")
		werr := protocol.WriteFrame(s.conn, protocol.MsgBet, protocol.EncodeBetResponse(false))
		return true, werr
	}

	if err := s.store.Append(bets); err != nil {
		log.Errorf("action: apuesta_recibida | result: fail | cantidad: %d | error: %v", len(bets), err)
		s.metrics.IncProtocolError("store_write")
		werr := protocol.WriteFrame(s.conn, protocol.MsgBet, protocol.EncodeBetResponse(false))
		return true, werr
	}

	log.Infof("action: apuesta_recibida | result: success | cantidad: %d", len(bets))
	for _, b := range bets {
		log.Debugf("action: apuesta_almacenada | result: success | dni: %s | numero: %d", b.Document, b.Number)
	}
	s.metrics.IncBetsStored(len(bets))

	werr := protocol.WriteFrame(s.conn, protocol.MsgBet, protocol.EncodeBetResponse(true))
	return false, werr
}

// handleFinishedSending implements spec.md §4.E's FINISHED_SENDING row. A
// malformed id replies error but keeps the session open, per the
// MalformedId policy in spec.md §7.
func (s *Session) handleFinishedSending(body []byte) (closeAfter bool, err error) {
	agencyID, err := protocol.DecodeAgencyID(body)
	if err != nil {
		log.Errorf("action: handle_finished_sending | result: fail | error: %v", err)
		s.metrics.IncProtocolError("malformed_id")
		werr := protocol.WriteFrame(s.conn, protocol.MsgFinishedSending, protocol.EncodeBetResponse(false))
		return false, werr
	}

	s.barrier.MarkFinished(agencyID)
	log.Infof(
		"action: agency_finished_registered | result: success | agency_id: %s | agencies_finished: %d",
		agencyID, s.barrier.Size(),
	)

	werr := protocol.WriteFrame(s.conn, protocol.MsgFinishedSending, protocol.EncodeBetResponse(true))
	return false, werr
}

// handleWinnersRequest implements spec.md §4.E's WINNERS_REQUEST rows: a
// not-ready barrier replies LOTTERY_NOT_READY with an empty "WINNERS=" body and keeps
// the session open for a client retry; a ready barrier scans the store and
// replies with the requesting agency's winning documents, preserving scan
// order (never re-sorted).
func (s *Session) handleWinnersRequest(body []byte) (closeAfter bool, err error) {
	agencyIDRaw, err := protocol.DecodeAgencyID(body)
	if err != nil {
		log.Errorf("action: handle_winners_request | result: fail | error: %v", err)
		s.metrics.IncProtocolError("malformed_id")
		werr := protocol.WriteFrame(s.conn, protocol.MsgWinnersResponse, protocol.EncodeWinners(nil))
		return false, werr
	}

	if !s.barrier.IsReady() {
		log.Warningf("action: sending_lottery_not_ready | result: success | agency_id: %s", agencyIDRaw)
		werr := protocol.WriteFrame(s.conn, protocol.MsgLotteryNotReady, protocol.EncodeWinners(nil))
		return false, werr
	}

	agencyID, convErr := strconv.Atoi(agencyIDRaw)
	if convErr != nil {
		log.Errorf("action: handle_winners_request | result: fail | error: %s", fmt.Errorf("invalid agency id %q: %w", agencyIDRaw, convErr))
		s.metrics.IncProtocolError("malformed_id")
		werr := protocol.WriteFrame(s.conn, protocol.MsgWinnersResponse, protocol.EncodeWinners(nil))
		return false, werr
	}

	allBets, err := s.store.Scan()
	if err != nil {
		log.Errorf("action: execute_lottery | result: fail | error: %v", err)
		werr := protocol.WriteFrame(s.conn, protocol.MsgWinnersResponse, protocol.EncodeWinners(nil))
		return false, werr
	}

	var winners []string
	for _, b := range allBets {
		if b.AgencyID == agencyID && s.store.IsWinner(b) {
			winners = append(winners, b.Document)
		}
	}
	log.Infof(
		"action: winners_retrieved | result: success | agency_id: %d | winners_count: %d",
		agencyID, len(winners),
	)

	werr := protocol.WriteFrame(s.conn, protocol.MsgWinnersResponse, protocol.EncodeWinners(winners))
	return false, werr
}
