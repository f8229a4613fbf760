package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"go.etcd.io/bbolt"

	"github.com/zombor/expense-assistant/internal/assistant"
	"github.com/zombor/expense-assistant/internal/menu"
	"github.com/zombor/expense-assistant/internal/receipt"
	"github.com/zombor/expense-assistant/internal/report"
	"github.com/zombor/expense-assistant/internal/session"
)

type outgoing struct {
	text string
	tag  string
}

// recordingMessenger collects everything sent to users
type recordingMessenger struct {
	mu   sync.Mutex
	sent []outgoing
}

func (m *recordingMessenger) SendMessage(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, outgoing{text: text})
	return nil
}

func (m *recordingMessenger) SendOptions(_ context.Context, _, text string, _ []menu.Option, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, outgoing{text: text, tag: tag})
	return nil
}

func (m *recordingMessenger) last() outgoing {
	m.mu.Lock()
	defer m.mu.Unlock()
	Expect(m.sent).NotTo(BeEmpty())
	return m.sent[len(m.sent)-1]
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

var _ = Describe("Integration", func() {
	const phone = "+1 555"

	var (
		sessions  *session.BoltStore
		messenger *recordingMessenger
		ghServer  *ghttp.Server
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		db, err := bbolt.Open(filepath.Join(tempDir, "test.db"), 0600, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		receiptDB, err := receipt.NewBoltDB(db)
		Expect(err).NotTo(HaveOccurred())
		sessions, err = session.NewBoltStore(db)
		Expect(err).NotTo(HaveOccurred())
		store, err := receipt.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		ghServer = ghttp.NewServer()
		DeferCleanup(ghServer.Close)
		baseURL := ghServer.URL()

		service, err := receipt.NewService(receiptDB, store, baseURL)
		Expect(err).NotTo(HaveOccurred())
		engine, err := report.New(report.Config{Dir: filepath.Join(tempDir, "reports"), BaseURL: baseURL})
		Expect(err).NotTo(HaveOccurred())

		messenger = &recordingMessenger{}
		presenter := menu.NewPresenter(sessions, messenger)
		handlers := assistant.NewHandlers(service, engine, sessions, presenter, messenger, nil, assistant.Options{Workbook: true})
		dispatcher, err := menu.NewDispatcher(sessions, messenger, handlers)
		Expect(err).NotTo(HaveOccurred())

		srv := NewServer(Deps{
			Messages: assistant.NewRouter(dispatcher, presenter, sessions, messenger),
			Receipts: assistant.NewIntake(service, sessions, presenter),
			Archive:  service,
			Reports:  engine,
			Plans:    sessions,
		}, BasicAuth{})

		ghServer.RouteToHandler(http.MethodGet, regexp.MustCompile(".*"), srv.ServeHTTP)
		ghServer.RouteToHandler(http.MethodPost, regexp.MustCompile(".*"), srv.ServeHTTP)
	})

	say := func(text string) {
		b, err := json.Marshal(map[string]string{"phone": phone, "text": text})
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ghServer.URL()+"/api/messages", "application/json", bytes.NewReader(b))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
	}

	sendReceipt := func(filename, data string) *receipt.Receipt {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		Expect(writer.WriteField("phone", phone)).To(Succeed())
		Expect(writer.WriteField("data", data)).To(Succeed())
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 receipt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/receipts", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var rec receipt.Receipt
		Expect(json.NewDecoder(resp.Body).Decode(&rec)).To(Succeed())
		return &rec
	}

	fetch := func(link string) string {
		u, err := url.Parse(link)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Get(ghServer.URL() + u.EscapedPath())
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(b)
	}

	It("should greet with the main menu", func() {
		say("hi")
		Expect(messenger.last().tag).To(Equal(menu.TagMainMenu))
		Expect(messenger.last().text).To(ContainSubstring("Upgrade Account"))
	})

	It("should go from a captured receipt to a downloadable report", func() {
		rec := sendReceipt("lunch.pdf", `{"merchantName":"Cafe","totalAmount":"12.50","currency":"usd","category":"food","receiptDate":"2024-05-01"}`)
		Expect(rec.OriginalFileURL).To(HavePrefix(ghServer.URL() + "/receipts/1555/"))
		Expect(messenger.last().tag).To(Equal(menu.TagPostReceiptMenu))

		s, err := sessions.GetSession(phone)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.MenuContext).To(Equal(session.MenuContextPostCapture))

		// "Get my file" from the post receipt menu
		say("1")
		reply := messenger.last().text
		Expect(reply).To(ContainSubstring("1 receipts, total 12.50"))
		links := linkPattern.FindAllString(reply, -1)
		Expect(links).To(HaveLen(2))
		Expect(links[0]).To(MatchRegexp(`/reports/expense_report_1555_[0-9a-f]{16}\.csv$`))
		Expect(links[1]).To(HaveSuffix(".xlsx"))

		csv := fetch(links[0])
		Expect(csv).To(ContainSubstring("Cafe"))
		Expect(csv).To(ContainSubstring("12.50"))
		Expect(csv).To(ContainSubstring(rec.OriginalFileURL))

		Expect(fetch(rec.OriginalFileURL)).To(Equal("%PDF-1.4 receipt"))

		s, err = sessions.GetSession(phone)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.MenuContext).To(Equal(session.MenuContextMain))
	})

	It("should answer the main menu after the post receipt menu was used", func() {
		sendReceipt("a.pdf", `{"merchantName":"Taxi","totalAmount":7,"category":"travel"}`)
		say("4") // show all commands
		Expect(messenger.last().tag).To(Equal(menu.TagMainMenu))

		say("2") // quick summary from the main menu
		reply := messenger.last().text
		Expect(reply).To(ContainSubstring("Total: 7.00"))
		Expect(reply).To(ContainSubstring("TRAVEL"))
		link := linkPattern.FindString(reply)
		summary := fetch(link)
		Expect(summary).To(ContainSubstring("Expense Summary"))
		Expect(summary).To(ContainSubstring("INR,7.00,1"))
	})

	It("should hide the upgrade entry for pro users", func() {
		Expect(sessions.SetPlan(phone, session.PlanPro)).To(Succeed())
		say("menu")
		Expect(messenger.last().text).NotTo(ContainSubstring("Upgrade"))

		say("7")
		Expect(messenger.last().text).To(ContainSubstring("between 1 and 6"))
	})

	It("should tell users without receipts to send one", func() {
		say("1")
		Expect(strings.ToLower(messenger.last().text)).To(ContainSubstring("haven't sent any receipts"))
	})
})
