// Package client is a reference client for the lottery intake protocol,
// adapted from fedepagnotta-tp0-distribuidos/client/common/client.go: CSV
// batch ingestion with size-bounded flushing, a background reader
// goroutine draining server acks, and signal.NotifyContext-driven graceful
// shutdown. It exists to exercise internal/protocol and internal/lottery
// end-to-end through cmd/client; it is not part of the spec's core (spec.md §1 lists
// client-side code as an external collaborator).
package client

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/fedepagnotta/tp0-distribuidos/internal/bet"
	"github.com/fedepagnotta/tp0-distribuidos/internal/logging"
	"github.com/fedepagnotta/tp0-distribuidos/internal/protocol"
)

var log = logging.MustGetLogger("client")

// frameOverhead accounts for the outer frame header plus one inner-frame
// header, so a batch never grows past protocol.MaxBodyLen once framed.
const frameOverhead = protocol.HeaderLen + 5

// Config configures a single agency's client run.
type Config struct {
	AgencyID       string
	ServerAddress  string
	BetsFilePath   string
	BatchMaxAmount int
}

// Client submits one agency's bets, signals completion, then polls for
// winners until the server reports the lottery ready.
type Client struct {
	config Config
	conn   net.Conn
}

// New builds a Client for the given configuration.
func New(config Config) *Client {
	return &Client{config: config}
}

func (c *Client) dial() error {
	conn, err := net.Dial("tcp", c.config.ServerAddress)
	if err != nil {
		log.Criticalf("action: connect | result: fail | agency_id: %s | error: %v", c.config.AgencyID, err)
		return err
	}
	c.conn = conn
	return nil
}

// Run opens the bets file, streams it to the server as size- and
// count-bounded batches, declares FINISHED_SENDING, and polls
// WINNERS_REQUEST until ready. ctx cancellation (SIGINT/SIGTERM via
// signal.NotifyContext at the call site) interrupts in-flight work after
// flushing whatever batch is already buffered.
func (c *Client) Run(ctx context.Context) error {
	betsFile, err := os.Open(c.config.BetsFilePath)
	if err != nil {
		log.Criticalf("action: read_bets | result: fail | error: %v", err)
		return err
	}
	defer betsFile.Close()

	if err := c.dial(); err != nil {
		return err
	}
	defer c.conn.Close()

	readDone := make(chan struct{})
	go c.drainResponses(readDone)

	reader := csv.NewReader(betsFile)
	reader.FieldsPerRecord = 5
	sendErr := c.sendBatches(ctx, reader)
	if sendErr != nil && !errors.Is(sendErr, context.Canceled) {
		log.Errorf("action: send_bets | result: fail | error: %v", sendErr)
		return sendErr
	}

	if sendErr == nil {
		c.finishAndPollWinners(ctx)
	}

	select {
	case <-ctx.Done():
		_ = c.conn.SetReadDeadline(time.Now())
		<-readDone
	case <-readDone:
	}
	return nil
}

// sendBatches reads bet records from reader, accumulating a BatchEnvelope
// and flushing it whenever the next bet would exceed protocol.MaxBodyLen or
// BatchMaxAmount, mirroring AddBetWithFlush/FlushBatch from the teacher's
// common/protocol.go.
func (c *Client) sendBatches(ctx context.Context, reader *csv.Reader) error {
	var batch []bet.Bet
	batchBodyLen := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := protocol.WriteFrame(c.conn, protocol.MsgBet, protocol.EncodeBatch(batch)); err != nil {
			return err
		}
		batch = batch[:0]
		batchBodyLen = 0
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				return err
			}
			return ctx.Err()
		default:
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return flush()
		}
		if err != nil {
			return err
		}

		agencyID, err := strconv.Atoi(c.config.AgencyID)
		if err != nil {
			return err
		}
		number, err := strconv.Atoi(record[4])
		if err != nil {
			return err
		}
		b := bet.Bet{
			AgencyID:  agencyID,
			FirstName: record[0],
			LastName:  record[1],
			Document:  record[2],
			Birthdate: record[3],
			Number:    number,
		}

		encoded := len(protocol.EncodeBetPayload(b))
		if batchBodyLen+encoded+frameOverhead > protocol.MaxBodyLen ||
			(c.config.BatchMaxAmount > 0 && len(batch)+1 > c.config.BatchMaxAmount) {
			if err := flush(); err != nil {
				return err
			}
		}
		batch = append(batch, b)
		batchBodyLen += encoded + 5
	}
}

// drainResponses reads every frame the server sends until EOF or a read
// error, logging BET/FINISHED_SENDING acks. Closed when the connection
// closes.
func (c *Client) drainResponses(done chan struct{}) {
	defer close(done)
	for {
		msgType, body, err := protocol.ReadFrame(c.conn)
		if err != nil {
			if !errors.Is(err, protocol.ErrEndOfStream) {
				log.Errorf("action: leer_respuesta | result: fail | error: %v", err)
			}
			return
		}
		switch msgType {
		case protocol.MsgBet:
			if protocol.IsSuccessResponse(body) {
				log.Infof("action: apuestas_enviadas | result: success")
			} else {
				log.Errorf("action: apuestas_enviadas | result: fail")
			}
		case protocol.MsgFinishedSending:
			if protocol.IsSuccessResponse(body) {
				log.Infof("action: send_finished | result: success | agency_id: %s", c.config.AgencyID)
			} else {
				log.Errorf("action: send_finished | result: fail | agency_id: %s", c.config.AgencyID)
			}
		}
	}
}

// finishAndPollWinners sends FINISHED_SENDING once, then opens a fresh
// connection per WINNERS_REQUEST attempt (matching the teacher's
// reconnect-and-poll loop), backing off between LOTTERY_NOT_READY replies.
func (c *Client) finishAndPollWinners(ctx context.Context) {
	if err := protocol.WriteFrame(c.conn, protocol.MsgFinishedSending, protocol.EncodeAgencyID(c.config.AgencyID)); err != nil {
		log.Errorf("action: send_finished | result: fail | error: %v", err)
		return
	}

	for {
		conn, err := net.Dial("tcp", c.config.ServerAddress)
		if err != nil {
			log.Errorf("action: send_request_winners | result: fail | error: %v", err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		if err := protocol.WriteFrame(conn, protocol.MsgWinnersRequest, protocol.EncodeAgencyID(c.config.AgencyID)); err != nil {
			conn.Close()
			log.Errorf("action: send_request_winners | result: fail | error: %v", err)
			return
		}

		msgType, body, err := protocol.ReadFrame(conn)
		conn.Close()

		if err == nil && msgType == protocol.MsgWinnersResponse {
			winners := protocol.DecodeWinners(body)
			log.Infof("action: consulta_ganadores | result: success | cant_ganadores: %d", len(winners))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}
