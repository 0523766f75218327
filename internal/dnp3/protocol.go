// Package dnp3 models the DNP3 master–outstation exchange as a session and
// data contract: the master connects, issues an integrity poll, and the
// outstation answers with its current analog-input snapshot. Frames are
// line-delimited JSON over TCP; wire-level framing, CRCs and object
// variations are intentionally not modeled.
package dnp3

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/user/gridpulse/internal/model"
)

// Application-layer function codes, reduced to the two the testbed uses.
const (
	FuncRead     = "READ"
	FuncResponse = "RESPONSE"
)

// ClassIntegrity requests all current values (a class 0 integrity poll).
const ClassIntegrity = 0

// SeqMod bounds the application sequence number, as in the 4-bit DNP3 field.
const SeqMod = 16

// ErrProtocol marks a malformed or unexpected response. The poll engine
// treats it like any other poll failure.
var ErrProtocol = errors.New("protocol violation")

// Request is a master poll addressed to one outstation link address.
type Request struct {
	Function    string `json:"function"`
	Class       int    `json:"class"`
	Seq         int    `json:"seq"`
	Destination int    `json:"destination"`
}

// Response carries the outstation's snapshot back to the master.
type Response struct {
	Function string       `json:"function"`
	Seq      int          `json:"seq"`
	Source   int          `json:"source"`
	Sample   model.Sample `json:"sample"`
}

// NewRead builds an integrity poll for the given outstation address.
func NewRead(seq, destination int) Request {
	return Request{
		Function:    FuncRead,
		Class:       ClassIntegrity,
		Seq:         seq % SeqMod,
		Destination: destination,
	}
}

// WriteFrame encodes v as one newline-terminated JSON frame.
func WriteFrame(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadRequest reads and decodes one request frame.
func ReadRequest(r *bufio.Reader) (Request, error) {
	var req Request
	if err := readFrame(r, &req); err != nil {
		return Request{}, err
	}
	if req.Function != FuncRead {
		return Request{}, fmt.Errorf("%w: unexpected function %q", ErrProtocol, req.Function)
	}
	return req, nil
}

// ReadResponse reads and decodes one response frame.
func ReadResponse(r *bufio.Reader) (Response, error) {
	var resp Response
	if err := readFrame(r, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func readFrame(r *bufio.Reader, v interface{}) error {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// Matches checks that resp answers req from the expected outstation address.
func (resp Response) Matches(req Request, source int) error {
	if resp.Function != FuncResponse {
		return fmt.Errorf("%w: unexpected function %q", ErrProtocol, resp.Function)
	}
	if resp.Seq != req.Seq {
		return fmt.Errorf("%w: seq %d, want %d", ErrProtocol, resp.Seq, req.Seq)
	}
	if resp.Source != source {
		return fmt.Errorf("%w: source address %d, want %d", ErrProtocol, resp.Source, source)
	}
	return nil
}
