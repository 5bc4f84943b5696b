package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Controller", func() {
	var (
		camera     *fakeCamera
		controller *Controller
	)

	BeforeEach(func() {
		camera = newFakeCamera()
		controller = NewController(camera)
	})

	Describe("Start", func() {
		It("opens a stream", func() {
			Expect(controller.Start(context.Background())).To(Succeed())
			Expect(controller.Active()).To(BeTrue())
			Expect(camera.Opened()).To(Equal(1))
		})

		It("holds at most one stream", func() {
			Expect(controller.Start(context.Background())).To(Succeed())
			Expect(controller.Start(context.Background())).To(Succeed())
			Expect(camera.Opened()).To(Equal(1))
		})

		When("the camera cannot be opened", func() {
			BeforeEach(func() {
				camera.openErr = errPermissionDenied
			})

			It("returns ErrCameraUnavailable", func() {
				err := controller.Start(context.Background())
				Expect(errors.Is(err, ErrCameraUnavailable)).To(BeTrue())
				Expect(controller.Active()).To(BeFalse())
			})
		})
	})

	Describe("Capture", func() {
		It("fails without a stream", func() {
			_, err := controller.Capture()
			Expect(errors.Is(err, ErrNotStarted)).To(BeTrue())
		})

		When("a stream is open", func() {
			BeforeEach(func() {
				Expect(controller.Start(context.Background())).To(Succeed())
			})

			It("returns a JPEG at native dimensions", func() {
				still, err := controller.Capture()
				Expect(err).NotTo(HaveOccurred())
				cfg, format, err := image.DecodeConfig(bytes.NewReader(still))
				Expect(err).NotTo(HaveOccurred())
				Expect(format).To(Equal("jpeg"))
				Expect(cfg.Width).To(Equal(64))
				Expect(cfg.Height).To(Equal(48))
			})

			It("releases the stream", func() {
				_, err := controller.Capture()
				Expect(err).NotTo(HaveOccurred())
				Expect(controller.Active()).To(BeFalse())
				Expect(camera.opened[0].Closed()).To(Equal(1))
			})

			It("releases the stream even when the frame fails", func() {
				camera.opened[0].frameErr = errors.New("device unplugged")
				_, err := controller.Capture()
				Expect(err).To(HaveOccurred())
				Expect(controller.Active()).To(BeFalse())
				Expect(camera.opened[0].Closed()).To(Equal(1))
			})
		})
	})

	Describe("Preview", func() {
		It("keeps the stream open", func() {
			Expect(controller.Start(context.Background())).To(Succeed())
			frame, err := controller.Preview()
			Expect(err).NotTo(HaveOccurred())
			Expect(frame).NotTo(BeEmpty())
			Expect(controller.Active()).To(BeTrue())
		})

		It("fails without a stream", func() {
			_, err := controller.Preview()
			Expect(errors.Is(err, ErrNotStarted)).To(BeTrue())
		})
	})

	Describe("Stop", func() {
		It("closes the held stream once", func() {
			Expect(controller.Start(context.Background())).To(Succeed())
			Expect(controller.Stop()).To(Succeed())
			Expect(controller.Stop()).To(Succeed())
			Expect(camera.opened[0].Closed()).To(Equal(1))
		})

		It("releases the stream that was opened, not a later one", func() {
			Expect(controller.Start(context.Background())).To(Succeed())
			Expect(controller.Stop()).To(Succeed())
			Expect(controller.Start(context.Background())).To(Succeed())
			Expect(controller.Stop()).To(Succeed())
			Expect(camera.opened).To(HaveLen(2))
			Expect(camera.opened[0].Closed()).To(Equal(1))
			Expect(camera.opened[1].Closed()).To(Equal(1))
		})

		It("is a no-op without a stream", func() {
			Expect(controller.Stop()).To(Succeed())
		})
	})
})
