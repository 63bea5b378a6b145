package public

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func postJSON(t *testing.T, handle gin.HandlerFunc, path, payload string) envelope {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	handle(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	return decodeEnvelope(t, w.Body.Bytes())
}

func TestSendSmsCodeEndpoint(t *testing.T) {
	f := setupPublicHandlerTest(t)

	resp := postJSON(t, f.handler.SendSmsCode, "/api/v1/sms/send-code", `{"phone":"13811112222","purpose":"register"}`)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d, msg=%s", resp.StatusCode, resp.Msg)
	}
	if sent, _ := resp.Data["sent"].(bool); !sent {
		t.Fatalf("sent want true")
	}

	// 发送间隔内重复请求应被拒绝
	resp = postJSON(t, f.handler.SendSmsCode, "/api/v1/sms/send-code", `{"phone":"13811112222","purpose":"register"}`)
	if resp.StatusCode != 429 {
		t.Fatalf("status_code want 429 got %d", resp.StatusCode)
	}
}

func TestSendSmsCodeRejectsUnknownPurpose(t *testing.T) {
	f := setupPublicHandlerTest(t)

	resp := postJSON(t, f.handler.SendSmsCode, "/api/v1/sms/send-code", `{"phone":"13811113333","purpose":"pwn"}`)
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
}

func TestVerifySmsCodeEndpointRejectsWrongCode(t *testing.T) {
	f := setupPublicHandlerTest(t)

	resp := postJSON(t, f.handler.SendSmsCode, "/api/v1/sms/send-code", `{"phone":"13811114444","purpose":"activate"}`)
	if resp.StatusCode != 0 {
		t.Fatalf("send status_code want 0 got %d", resp.StatusCode)
	}

	payload := fmt.Sprintf(`{"phone":"13811114444","purpose":"activate","code":"%s"}`, "000000")
	resp = postJSON(t, f.handler.VerifySmsCode, "/api/v1/sms/verify-code", payload)
	if resp.StatusCode != 400 {
		t.Fatalf("wrong code status_code want 400 got %d", resp.StatusCode)
	}
}
