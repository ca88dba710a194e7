package chat

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vitalhub/thrivesync/internal/api"
	chatDto "github.com/vitalhub/thrivesync/internal/modules/chat/dto"
)

// ReceiptListener consumes the out-of-band delivery/read receipt stream and
// feeds it into the chat service. If the stream is absent or drops, messages
// simply park at sent, which is an acceptable terminal-in-practice state.
type ReceiptListener struct {
	url    string
	access api.AccessProvider
	apply  func(chatDto.Receipt)

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func NewReceiptListener(wsURL string, access api.AccessProvider, apply func(chatDto.Receipt)) *ReceiptListener {
	return &ReceiptListener{
		url:    wsURL,
		access: access,
		apply:  apply,
	}
}

// Start dials the receipt stream and reads until the connection drops or
// Stop is called. Returns the dial error, if any; read errors after a
// successful dial are logged only.
func (l *ReceiptListener) Start(ctx context.Context) error {
	header := http.Header{}
	if token := l.access.AccessToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, header)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.conn = conn
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		defer conn.Close()
		for {
			var r chatDto.Receipt
			if err := conn.ReadJSON(&r); err != nil {
				if ctx.Err() == nil {
					log.Printf("receipt stream closed: %v", err)
				}
				return
			}
			l.apply(r)
		}
	}()
	return nil
}

// Stop closes the connection and waits for the read loop to exit.
func (l *ReceiptListener) Stop() {
	l.mu.Lock()
	conn, done := l.conn, l.done
	l.conn, l.done = nil, nil
	l.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	<-done
}
