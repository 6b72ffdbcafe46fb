package owner_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/emmabastas/libxclip/owner"
	"github.com/emmabastas/libxclip/requester"
	"github.com/emmabastas/libxclip/xwire"
)

// runOwner starts an owner.Loop over payload on the named selection and
// returns it once Setup has acquired the selection, along with a channel
// that receives Run's result.
func runOwner(srv *xwire.FakeServer, selectionName string, payload []byte) (*owner.Loop, <-chan error) {
	conn := srv.NewClient()
	sel, err := conn.InternAtom(selectionName, false)
	Expect(err).NotTo(HaveOccurred())

	l := owner.New(conn, sel, payload, nil, nil)
	Expect(l.Setup()).To(Succeed())

	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	return l, done
}

var _ = Describe("owner.Loop", func() {
	var srv *xwire.FakeServer

	BeforeEach(func() {
		srv = xwire.NewFakeServer(1 << 16) // chunk_size = 16384, small enough that a 32768-byte payload forces INCR
	})

	Describe("single-shot transfers", func() {
		It("delivers a small payload verbatim (S1)", func() {
			_, _ = runOwner(srv, "CLIPBOARD", []byte("Foobarbaz"))

			got, err := requester.Get(srv.NewClient(), requester.Options{
				Selection: mustAtom(srv, "CLIPBOARD"),
				Target:    mustAtom(srv, "UTF8_STRING"),
				Timeout:   time.Second,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]byte("Foobarbaz")))
		})

		It("delivers an empty payload as an empty, successful read (S2)", func() {
			_, _ = runOwner(srv, "CLIPBOARD", []byte{})

			got, err := requester.Get(srv.NewClient(), requester.Options{
				Selection: mustAtom(srv, "CLIPBOARD"),
				Target:    mustAtom(srv, "UTF8_STRING"),
				Timeout:   time.Second,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("answers TARGETS with exactly TARGETS and UTF8_STRING", func() {
			_, _ = runOwner(srv, "CLIPBOARD", []byte("x"))

			got, err := requester.Targets(srv.NewClient(), requester.Options{
				Selection: mustAtom(srv, "CLIPBOARD"),
				Timeout:   time.Second,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(ConsistOf(mustAtom(srv, "TARGETS"), mustAtom(srv, "UTF8_STRING")))
		})
	})

	Describe("INCR transfers", func() {
		It("reassembles a large payload across chunk_size-bounded chunks (S3)", func() {
			payload := []byte(strings.Repeat("#", 1<<15)) // twice the fake server's 16384-byte chunk_size
			l, _ := runOwner(srv, "CLIPBOARD", payload)
			Expect(l.ChunkSize()).To(BeNumerically(">", 0))

			got, err := requester.Get(srv.NewClient(), requester.Options{
				Selection: mustAtom(srv, "CLIPBOARD"),
				Target:    mustAtom(srv, "UTF8_STRING"),
				Timeout:   5 * time.Second,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(payload))
		})

		It("serves several concurrent requesters independently (S4)", func() {
			payload := []byte(strings.Repeat("#", 1<<15))
			_, _ = runOwner(srv, "CLIPBOARD", payload)

			const n = 10
			results := make(chan []byte, n)
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				go func() {
					got, err := requester.Get(srv.NewClient(), requester.Options{
						Selection: mustAtom(srv, "CLIPBOARD"),
						Target:    mustAtom(srv, "UTF8_STRING"),
						Timeout:   5 * time.Second,
					})
					results <- got
					errs <- err
				}()
			}
			for i := 0; i < n; i++ {
				Expect(<-errs).NotTo(HaveOccurred())
				Expect(<-results).To(Equal(payload))
			}
		})
	})

	Describe("refusals and failures", func() {
		It("refuses an unadvertised target without blocking (invariant 8)", func() {
			_, _ = runOwner(srv, "CLIPBOARD", []byte("x"))

			bogusTarget, err := srv.NewClient().InternAtom("IMAGE/PNG", false)
			Expect(err).NotTo(HaveOccurred())

			_, err = requester.Get(srv.NewClient(), requester.Options{
				Selection: mustAtom(srv, "CLIPBOARD"),
				Target:    bogusTarget,
				Timeout:   time.Second,
			})
			Expect(err).To(MatchError(ContainSubstring("refused")))
		})

		It("reports NoOwner when nothing owns the selection (S5)", func() {
			_, err := requester.Get(srv.NewClient(), requester.Options{
				Selection: mustAtom(srv, "CLIPBOARD"),
				Target:    mustAtom(srv, "UTF8_STRING"),
				Timeout:   time.Second,
			})
			Expect(err).To(MatchError(ContainSubstring("no owner")))
		})
	})

	Describe("SelectionClear mid-transfer (S7)", func() {
		It("terminates the loop cleanly instead of continuing an in-flight INCR transfer", func() {
			payload := []byte(strings.Repeat("#", 1<<15))
			_, done := runOwner(srv, "CLIPBOARD", payload)

			// Start a requester but don't let it finish: grab the INCR
			// advertisement, then take the selection away before sending
			// any acknowledging PropertyDelete.
			reqConn := srv.NewClient()
			win, err := reqConn.CreateWindow()
			Expect(err).NotTo(HaveOccurred())
			Expect(reqConn.SelectPropertyChange(win)).To(Succeed())
			prop, err := reqConn.InternAtom("LIBXCLIP_DATA", false)
			Expect(err).NotTo(HaveOccurred())
			sel := mustAtom(srv, "CLIPBOARD")
			utf8 := mustAtom(srv, "UTF8_STRING")
			Expect(reqConn.ConvertSelection(win, sel, utf8, prop, 0)).To(Succeed())
			Expect(reqConn.Sync()).To(Succeed())

			_, err = reqConn.NextEvent() // the PropertyNotify for the INCR advertisement property
			Expect(err).NotTo(HaveOccurred())

			// A second client takes ownership out from under the first owner.
			other := srv.NewClient()
			otherWin, err := other.CreateWindow()
			Expect(err).NotTo(HaveOccurred())
			Expect(other.SetSelectionOwner(otherWin, sel, 0)).To(Succeed())

			Eventually(done, time.Second).Should(Receive(BeNil()))
		})
	})
})

func mustAtom(srv *xwire.FakeServer, name string) xwire.Atom {
	a, err := srv.NewClient().InternAtom(name, false)
	Expect(err).NotTo(HaveOccurred())
	return a
}
