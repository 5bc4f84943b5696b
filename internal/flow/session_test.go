package flow

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/lotto-checker/internal/capture"
	"github.com/zombor/lotto-checker/internal/ticket"
)

var _ = Describe("Session", func() {
	var (
		analyzer *mockAnalyzer
		recorder *mockRecorder
		opts     Options
		session  *Session
	)

	stateName := func() StateName {
		return session.State().Name()
	}

	BeforeEach(func() {
		analyzer = &mockAnalyzer{result: jackpot()}
		recorder = &mockRecorder{}
		opts = Options{Recorder: recorder}
	})

	JustBeforeEach(func() {
		session = NewSession("session-1", analyzer, opts)
	})

	AfterEach(func() {
		session.Close()
		session.Wait()
	})

	It("starts at home", func() {
		Expect(session.State()).To(Equal(Home{}))
		Expect(session.ID()).To(Equal("session-1"))
	})

	Describe("with a client side camera", func() {
		JustBeforeEach(func() {
			Expect(session.StartScan(context.Background())).To(Succeed())
		})

		It("enters scanning", func() {
			Expect(session.State()).To(Equal(Scanning{}))
			Expect(session.HasCamera()).To(BeFalse())
		})

		It("returns home on cancel with nothing stored", func() {
			Expect(session.Cancel()).To(Succeed())
			Expect(session.State()).To(Equal(Home{}))
		})

		When("the browser reports a denied camera", func() {
			JustBeforeEach(func() {
				Expect(session.CameraFailed(errors.New("NotAllowedError"))).To(Succeed())
			})

			It("stays in scanning with the inline message", func() {
				Expect(session.State()).To(Equal(Scanning{CameraError: capture.CameraUnavailableMessage}))
			})

			It("does not allow a capture", func() {
				Expect(session.Capture(jpegStill, "image/jpeg")).To(MatchError(ErrInvalidTransition))
				Expect(analyzer.Requests()).To(BeEmpty())
			})
		})

		It("rejects a capture without an image", func() {
			Expect(session.Capture(nil, "image/jpeg")).To(MatchError(ErrNoFrame))
			Expect(session.State()).To(Equal(Scanning{}))
		})

		When("the analysis succeeds", func() {
			JustBeforeEach(func() {
				Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
			})

			It("reaches the result state", func() {
				Eventually(stateName).Should(Equal(StateResult))
				Expect(session.State().(Result).Result.DrawNumber).To(Equal("1100"))
			})

			It("sends exactly one request with the captured still", func() {
				Eventually(stateName).Should(Equal(StateResult))
				Expect(analyzer.Requests()).To(HaveLen(1))
				Expect(analyzer.Requests()[0].Image).To(Equal(jpegStill))
				Expect(analyzer.Requests()[0].MIMEType).To(Equal("image/jpeg"))
			})

			It("records the result", func() {
				Eventually(recorder.Results).Should(HaveLen(1))
			})

			It("clears the result on reset", func() {
				Eventually(stateName).Should(Equal(StateResult))
				Expect(session.Reset()).To(Succeed())
				Expect(session.State()).To(Equal(Home{}))
			})
		})

		When("the analysis fails", func() {
			BeforeEach(func() {
				analyzer = &mockAnalyzer{err: errAnalysis}
			})

			JustBeforeEach(func() {
				Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
			})

			It("reaches the error state with the fixed message", func() {
				Eventually(stateName).Should(Equal(StateError))
				Expect(session.State()).To(Equal(Failure{Message: FailureMessage}))
			})

			It("records nothing", func() {
				Eventually(stateName).Should(Equal(StateError))
				Expect(recorder.Results()).To(BeEmpty())
			})

			It("returns home on reset", func() {
				Eventually(stateName).Should(Equal(StateError))
				Expect(session.Reset()).To(Succeed())
				Expect(session.State()).To(Equal(Home{}))
			})
		})

		When("the analyzer returns neither a result nor an error", func() {
			BeforeEach(func() {
				analyzer = &mockAnalyzer{}
			})

			It("fails", func() {
				Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
				Eventually(stateName).Should(Equal(StateError))
			})
		})

		When("the uploaded image cannot be read", func() {
			It("fails without calling the analyzer", func() {
				Expect(session.Capture([]byte("not an image"), "image/png")).To(Succeed())
				Expect(session.State()).To(Equal(Failure{Message: FailureMessage}))
				Expect(analyzer.Requests()).To(BeEmpty())
			})
		})

		When("the analysis is still running", func() {
			BeforeEach(func() {
				analyzer = &mockAnalyzer{result: jackpot(), block: make(chan struct{})}
			})

			JustBeforeEach(func() {
				Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
			})

			It("is processing", func() {
				Expect(stateName()).To(Equal(StateProcessing))
			})

			It("rejects another capture", func() {
				Expect(errors.Is(session.Capture(jpegStill, "image/jpeg"), ErrInvalidTransition)).To(BeTrue())
			})

			It("discards the result after a reset", func() {
				Expect(session.Reset()).To(Succeed())
				close(analyzer.block)
				session.Wait()
				Expect(session.State()).To(Equal(Home{}))
				Expect(recorder.Results()).To(BeEmpty())
			})

			It("ignores a late result once a new scan has started", func() {
				Expect(session.Reset()).To(Succeed())
				Expect(session.StartScan(context.Background())).To(Succeed())
				session.Wait()
				Expect(session.State()).To(Equal(Scanning{}))
			})
		})
	})

	Describe("with a server camera", func() {
		var camera *mockCamera

		BeforeEach(func() {
			camera = &mockCamera{}
			opts.Camera = camera
		})

		It("opens the camera on scan", func() {
			Expect(session.StartScan(context.Background())).To(Succeed())
			Expect(session.HasCamera()).To(BeTrue())
			Expect(camera.streams).To(HaveLen(1))
		})

		It("releases the camera on cancel", func() {
			Expect(session.StartScan(context.Background())).To(Succeed())
			Expect(session.Cancel()).To(Succeed())
			Expect(camera.AllClosed()).To(BeTrue())
		})

		It("releases the camera on capture and sends a JPEG still", func() {
			Expect(session.StartScan(context.Background())).To(Succeed())
			Expect(session.Capture(nil, "")).To(Succeed())
			Expect(camera.AllClosed()).To(BeTrue())
			Eventually(stateName).Should(Equal(StateResult))
			Expect(analyzer.Requests()[0].Image[:2]).To(Equal([]byte{0xFF, 0xD8}))
		})

		It("releases the camera on close", func() {
			Expect(session.StartScan(context.Background())).To(Succeed())
			session.Close()
			Expect(camera.AllClosed()).To(BeTrue())
		})

		It("serves preview frames while scanning", func() {
			Expect(session.StartScan(context.Background())).To(Succeed())
			frame, err := session.Preview()
			Expect(err).NotTo(HaveOccurred())
			Expect(frame).NotTo(BeEmpty())
		})

		When("the camera is unavailable", func() {
			BeforeEach(func() {
				camera.openErr = errors.New("permission denied")
			})

			It("stays in scanning with the inline message", func() {
				Expect(session.StartScan(context.Background())).To(Succeed())
				Expect(session.State()).To(Equal(Scanning{CameraError: capture.CameraUnavailableMessage}))
			})

			It("does not allow a capture", func() {
				Expect(session.StartScan(context.Background())).To(Succeed())
				Expect(errors.Is(session.Capture(nil, ""), ErrInvalidTransition)).To(BeTrue())
			})

			It("can cancel back home and retry", func() {
				Expect(session.StartScan(context.Background())).To(Succeed())
				Expect(session.Cancel()).To(Succeed())
				camera.mu.Lock()
				camera.openErr = nil
				camera.mu.Unlock()
				Expect(session.StartScan(context.Background())).To(Succeed())
				Expect(session.State()).To(Equal(Scanning{}))
			})
		})
	})

	Describe("Subscribe", func() {
		It("delivers each new state", func() {
			updates, unsubscribe := session.Subscribe()
			defer unsubscribe()

			Expect(session.StartScan(context.Background())).To(Succeed())
			Eventually(updates).Should(Receive(Equal(State(Scanning{}))))

			Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
			Eventually(updates).Should(Receive(WithTransform(func(s State) StateName { return s.Name() }, Equal(StateResult))))
		})

		It("keeps only the latest state for slow readers", func() {
			updates, unsubscribe := session.Subscribe()
			defer unsubscribe()

			Expect(session.StartScan(context.Background())).To(Succeed())
			Expect(session.Cancel()).To(Succeed())
			Expect(updates).To(Receive(Equal(State(Home{}))))
			Expect(updates).NotTo(Receive())
		})

		It("closes subscriptions when the session closes", func() {
			updates, _ := session.Subscribe()
			session.Close()
			Eventually(updates).Should(BeClosed())
		})
	})

	Describe("Close", func() {
		It("rejects new scans", func() {
			session.Close()
			Expect(session.StartScan(context.Background())).To(MatchError(ErrClosed))
		})

		It("aborts an in-flight analysis", func() {
			analyzer.block = make(chan struct{})
			Expect(session.StartScan(context.Background())).To(Succeed())
			Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
			session.Close()
			done := make(chan struct{})
			go func() {
				session.Wait()
				close(done)
			}()
			Eventually(done, time.Second).Should(BeClosed())
		})
	})

	It("tracks activity", func() {
		now := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)
		clock := now
		opts.Now = func() time.Time { return clock }
		session = NewSession("clocked", analyzer, opts)
		Expect(session.LastActivity()).To(Equal(now))

		clock = now.Add(time.Minute)
		Expect(session.StartScan(context.Background())).To(Succeed())
		Expect(session.LastActivity()).To(Equal(now.Add(time.Minute)))
	})

	It("does not share results between captures", func() {
		Expect(session.StartScan(context.Background())).To(Succeed())
		Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
		Eventually(stateName).Should(Equal(StateResult))
		first := session.State().(Result).Result

		Expect(session.Reset()).To(Succeed())
		analyzer.mu.Lock()
		analyzer.result = &ticket.LottoResult{DrawNumber: "1101", TicketRows: []ticket.TicketRow{}}
		analyzer.mu.Unlock()

		Expect(session.StartScan(context.Background())).To(Succeed())
		Expect(session.Capture(jpegStill, "image/jpeg")).To(Succeed())
		Eventually(stateName).Should(Equal(StateResult))
		Expect(session.State().(Result).Result.DrawNumber).To(Equal("1101"))
		Expect(first.DrawNumber).To(Equal("1100"))
	})
})
