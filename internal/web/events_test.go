package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/lotto-checker/internal/flow"
)

var _ = Describe("handleEvents", func() {
	var (
		manager *flow.Manager
		httpSrv *httptest.Server
		session *flow.Session
		conn    *websocket.Conn
	)

	BeforeEach(func() {
		manager = flow.NewManager(func(id string) *flow.Session {
			return flow.NewSession(id, &mockAnalyzer{result: jackpot()}, flow.Options{})
		}, time.Hour)
		httpSrv = httptest.NewServer(NewServer(manager, nil, BasicAuth{}).Handler())
		session = manager.GetOrCreate("")

		wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/session/events"
		header := http.Header{"Cookie": {sessionCookie + "=" + session.ID()}}
		var err error
		conn, _, err = websocket.DefaultDialer.Dial(wsURL, header)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		conn.Close()
		manager.Close()
		httpSrv.Close()
	})

	next := func() flow.StateName {
		var ev stateEvent
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		Expect(conn.ReadJSON(&ev)).To(Succeed())
		return ev.State
	}

	It("should send the current state on connect", func() {
		Expect(next()).To(Equal(flow.StateHome))
	})

	It("should push every transition", func() {
		Expect(next()).To(Equal(flow.StateHome))

		Expect(session.StartScan(context.Background())).To(Succeed())
		Expect(next()).To(Equal(flow.StateScanning))

		Expect(session.Cancel()).To(Succeed())
		Expect(next()).To(Equal(flow.StateHome))
	})

	It("should close when the session closes", func() {
		Expect(next()).To(Equal(flow.StateHome))

		session.Close()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		Expect(websocket.IsCloseError(err, websocket.CloseGoingAway)).To(BeTrue())
	})
})
