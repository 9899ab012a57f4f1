package expense

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// multipartUpload builds a multipart body with a single file part carrying
// an explicit Content-Type
func multipartUpload(field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())

	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		store       *mockStore
		extractor   *mockExtractor
		service     *Service
		server      *Server
		config      Config
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, config, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		store = newMockStore()
		extractor = newMockExtractor()
		service = NewService(store, extractor)
		config = Config{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleExtract", func() {
		var (
			resp     *http.Response
			envelope map[string]any
		)

		postUpload := func(field, filename, contentType string, content []byte) {
			body, formContentType := multipartUpload(field, filename, contentType, content)
			var err error
			resp, err = http.Post(ghttpServer.URL()+"/api/extract", formContentType, body)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(resp.Body.Close)

			envelope = map[string]any{}
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
		}

		When("the upload is valid", func() {
			BeforeEach(func() {
				extractor.reply = `{"merchant":"Whole Foods Market","amount":45.67,"date":"2025-10-01"}`
				postUpload("image", "receipt.jpg", "image/jpeg", []byte("fake image data"))
			})

			It("should return status OK", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})

			It("should return a success envelope with the extracted fields", func() {
				Expect(envelope["success"]).To(BeTrue())
				data := envelope["data"].(map[string]any)
				Expect(data["merchant"]).To(Equal("Whole Foods Market"))
				Expect(data["amount"]).To(Equal(45.67))
				Expect(data["date"]).To(Equal("2025-10-01"))
			})

			It("should not persist anything server-side", func() {
				Expect(store.expenses).To(BeEmpty())
			})
		})

		When("no file is provided", func() {
			BeforeEach(func() {
				postUpload("wrong-field", "receipt.jpg", "image/jpeg", []byte("fake image data"))
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should name the missing file", func() {
				Expect(envelope["error"]).To(Equal("No image file provided"))
			})

			It("should not call the extractor", func() {
				Expect(extractor.called).To(BeFalse())
			})
		})

		When("the file type is not allowed", func() {
			BeforeEach(func() {
				postUpload("image", "notes.txt", "text/plain", []byte("just some text"))
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should describe the allowed types", func() {
				Expect(envelope["error"]).To(Equal("Invalid file type. Only JPG, PNG, and HEIC are allowed."))
			})

			It("should not call the extractor", func() {
				Expect(extractor.called).To(BeFalse())
			})
		})

		When("the upload exceeds the size limit", func() {
			BeforeEach(func() {
				postUpload("image", "huge.jpg", "image/jpeg", bytes.Repeat([]byte("a"), 7<<20))
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should report the size limit", func() {
				Expect(envelope["error"]).To(Equal("File too large. Maximum size is 6MB."))
			})

			It("should reject before any extraction happens", func() {
				Expect(extractor.called).To(BeFalse())
			})
		})

		When("the model reply is unparsable", func() {
			BeforeEach(func() {
				extractor.reply = "Sorry, I can't read this."
				postUpload("image", "receipt.jpg", "image/jpeg", []byte("fake image data"))
			})

			It("should return status Internal Server Error", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})

			It("should return a failure envelope with a non-empty error", func() {
				Expect(envelope["success"]).To(BeFalse())
				Expect(envelope["error"]).NotTo(BeEmpty())
			})

			It("should include no data field", func() {
				Expect(envelope).NotTo(HaveKey("data"))
			})
		})
	})

	Describe("handleHealth", func() {
		It("reports ok with a timestamp and the environment", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var health map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
			Expect(health["status"]).To(Equal("ok"))
			Expect(health["timestamp"]).NotTo(BeEmpty())
			Expect(health).To(HaveKey("environment"))
		})
	})

	Describe("handleListExpenses", func() {
		When("expenses exist", func() {
			BeforeEach(func() {
				store.expenses = []Expense{{ID: "2", Merchant: "Second"}, {ID: "1", Merchant: "First"}}
			})

			It("returns them newest first as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/expenses")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var expenses []Expense
				Expect(json.NewDecoder(resp.Body).Decode(&expenses)).To(Succeed())
				Expect(expenses).To(HaveLen(2))
				Expect(expenses[0].ID).To(Equal("2"))
			})
		})

		When("no expenses exist", func() {
			It("returns an empty array, not null", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/expenses")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON("[]"))
			})
		})
	})

	Describe("handleCreateExpense", func() {
		It("persists the record and returns it with identity assigned", func() {
			payload := bytes.NewBufferString(`{"merchant":"Whole Foods Market","amount":45.67,"date":"2025-10-01"}`)
			resp, err := http.Post(ghttpServer.URL()+"/api/expenses", "application/json", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created Expense
			Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.Merchant).To(Equal("Whole Foods Market"))
			Expect(store.expenses).To(HaveLen(1))
		})

		When("the store is full", func() {
			BeforeEach(func() {
				store.appendErr = ErrStorageFull
			})

			It("surfaces the quota error", func() {
				payload := bytes.NewBufferString(`{"merchant":"Target","amount":1,"date":"2025-10-01"}`)
				resp, err := http.Post(ghttpServer.URL()+"/api/expenses", "application/json", payload)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["error"]).To(Equal("Storage quota exceeded. Please delete some expenses."))
			})
		})
	})

	Describe("handleDeleteExpense", func() {
		BeforeEach(func() {
			store.expenses = []Expense{{ID: "keep"}, {ID: "drop"}}
		})

		It("removes the record and returns no content", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/expenses/drop", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(store.expenses).To(HaveLen(1))
			Expect(store.expenses[0].ID).To(Equal("keep"))
		})
	})

	Describe("handleIndex", func() {
		When("running outside production", func() {
			It("returns the API descriptor", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["message"]).To(Equal("Expense tracker API is running"))
			})
		})

		When("running in production", func() {
			BeforeEach(func() {
				config = Config{Environment: "production"}
				setupServer()
			})

			It("serves the embedded frontend", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/html"))
				Expect(string(body)).To(ContainSubstring("Expense Snap"))
			})
		})
	})
})
