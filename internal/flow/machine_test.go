package flow

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/lotto-checker/internal/capture"
)

var _ = Describe("Transition", func() {
	at := time.Date(2026, 1, 3, 20, 45, 0, 0, time.UTC)

	DescribeTable("valid transitions",
		func(from State, event Event, expected State) {
			next, err := Transition(from, event)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(expected))
		},
		Entry("home starts scanning", Home{}, StartScan{}, Scanning{}),
		Entry("scanning cancels home", Scanning{}, Cancel{}, Home{}),
		Entry("scanning captures", Scanning{}, Capture{At: at}, Processing{Since: at}),
		Entry("camera failure stays in scanning", Scanning{}, CameraFailed{Err: errors.New("denied")}, Scanning{CameraError: capture.CameraUnavailableMessage}),
		Entry("camera error can cancel", Scanning{CameraError: "x"}, Cancel{}, Home{}),
		Entry("processing succeeds", Processing{}, AnalysisSucceeded{Result: jackpot()}, Result{Result: jackpot()}),
		Entry("processing fails", Processing{}, AnalysisFailed{Err: errAnalysis}, Failure{Message: FailureMessage}),
		Entry("result resets", Result{Result: jackpot()}, Reset{}, Home{}),
		Entry("failure resets", Failure{Message: FailureMessage}, Reset{}, Home{}),
		Entry("processing resets", Processing{}, Reset{}, Home{}),
		Entry("home resets", Home{}, Reset{}, Home{}),
	)

	DescribeTable("invalid transitions",
		func(from State, event Event) {
			next, err := Transition(from, event)
			Expect(errors.Is(err, ErrInvalidTransition)).To(BeTrue())
			Expect(next).To(Equal(from))
		},
		Entry("capture from home", Home{}, Capture{}),
		Entry("cancel from home", Home{}, Cancel{}),
		Entry("start while scanning", Scanning{}, StartScan{}),
		Entry("capture without a camera", Scanning{CameraError: capture.CameraUnavailableMessage}, Capture{}),
		Entry("capture while processing", Processing{}, Capture{}),
		Entry("cancel while processing", Processing{}, Cancel{}),
		Entry("success outside processing", Home{}, AnalysisSucceeded{Result: jackpot()}),
		Entry("success without a result", Processing{}, AnalysisSucceeded{}),
		Entry("failure after a result", Result{Result: jackpot()}, AnalysisFailed{Err: errAnalysis}),
		Entry("start from result", Result{Result: jackpot()}, StartScan{}),
		Entry("camera failure at home", Home{}, CameraFailed{}),
	)

	It("never reveals the underlying analysis error", func() {
		next, err := Transition(Processing{}, AnalysisFailed{Err: errors.New("401 API key invalid")})
		Expect(err).NotTo(HaveOccurred())
		Expect(next.(Failure).Message).NotTo(ContainSubstring("401"))
	})

	It("names every state", func() {
		Expect(Home{}.Name()).To(Equal(StateHome))
		Expect(Scanning{}.Name()).To(Equal(StateScanning))
		Expect(Processing{}.Name()).To(Equal(StateProcessing))
		Expect(Result{}.Name()).To(Equal(StateResult))
		Expect(Failure{}.Name()).To(Equal(StateError))
	})
})
