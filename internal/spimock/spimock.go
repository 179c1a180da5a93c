// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package spimock provides a recording spi.Conn for testing drivers.
package spimock

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// ErrInjected is the error returned by a failing transaction.
var ErrInjected = errors.New("injected transfer failure")

// Packet is a recorded packet.
type Packet struct {
	W      []byte
	RLen   int
	KeepCS bool
}

// Transaction is a recorded Tx or TxPackets call.
// Each Transaction corresponds to a single CS assertion, unless a packet
// other than the last has KeepCS false.
type Transaction struct {
	Packets []Packet
}

// W returns the concatenated writes of the transaction.
func (t Transaction) W() []byte {
	var w []byte
	for _, p := range t.Packets {
		w = append(w, p.W...)
	}
	return w
}

// Conn is a spi.Conn that records all transactions.
//
// Read packets are filled from Handler, if set, else from Responses, in
// order. Once Responses is exhausted reads return zeros.
type Conn struct {
	mu sync.Mutex

	// Transactions records every transaction, including failed ones.
	Transactions []Transaction

	// Responses are copied into read packets in order.
	Responses [][]byte

	// Handler, if set, services each transaction in place of Responses.
	Handler func(pp []spi.Packet) error

	// FailAt causes the transaction with that index (1 based) to fail
	// with ErrInjected.
	FailAt int

	// FailFrom causes all transactions from that index (1 based) to fail
	// with ErrInjected.
	FailFrom int
}

// New creates a Conn with the given read responses.
func New(responses ...[]byte) *Conn {
	return &Conn{Responses: responses}
}

func (c *Conn) String() string {
	return "spimock"
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	return conn.Full
}

// Tx implements conn.Conn.
func (c *Conn) Tx(w, r []byte) error {
	return c.TxPackets([]spi.Packet{{W: w, R: r}})
}

// TxPackets implements spi.Conn.
func (c *Conn) TxPackets(pp []spi.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Transaction{Packets: make([]Packet, len(pp))}
	for i, p := range pp {
		t.Packets[i] = Packet{
			W:      append([]byte(nil), p.W...),
			RLen:   len(p.R),
			KeepCS: p.KeepCS,
		}
	}
	c.Transactions = append(c.Transactions, t)
	n := len(c.Transactions)
	if n == c.FailAt || (c.FailFrom > 0 && n >= c.FailFrom) {
		return ErrInjected
	}
	if c.Handler != nil {
		return c.Handler(pp)
	}
	for _, p := range pp {
		if len(p.R) == 0 {
			continue
		}
		if len(c.Responses) == 0 {
			for i := range p.R {
				p.R[i] = 0
			}
			continue
		}
		copy(p.R, c.Responses[0])
		c.Responses = c.Responses[1:]
	}
	return nil
}

// Count returns the number of transactions performed.
func (c *Conn) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Transactions)
}

// Writes returns the concatenated writes of each transaction.
func (c *Conn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	ww := make([][]byte, len(c.Transactions))
	for i, t := range c.Transactions {
		ww[i] = t.W()
	}
	return ww
}

// Reset clears the recorded transactions.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.Transactions = nil
	c.mu.Unlock()
}
