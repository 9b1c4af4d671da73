// Package easypaytest 提供记录请求的 EasyPay 假服务器，供测试使用
package easypaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Request 服务器收到的一次请求
type Request struct {
	Path     string
	Endpoint string
	Body     map[string]interface{}
}

// HandlerFunc 返回 HTTP 状态码和 JSON 响应体
type HandlerFunc func(req Request) (int, interface{})

// Server 假 EasyPay 服务器
//
// 默认对所有接口返回成功，审批金额等于该订单 webpay 请求中的金额，
// 或通过 SetAmount 指定的金额。
type Server struct {
	*httptest.Server

	// Delay 每个请求处理前的等待时间
	Delay time.Duration

	mu       sync.Mutex
	requests []Request
	handlers map[string]HandlerFunc
	amounts  map[string]int64
	seq      int
}

// NewServer 启动服务器，调用方负责 Close
func NewServer() *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		amounts:  make(map[string]int64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Handle 覆盖某个接口的响应，endpoint 为路径最后一段，如 approval、revise
func (s *Server) Handle(endpoint string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[endpoint] = fn
}

// SetAmount 指定订单的审批金额
func (s *Server) SetAmount(orderNo string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amounts[orderNo] = amount
}

// Requests 已收到的请求
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count 某个接口收到的请求数
func (s *Server) Count(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Endpoint == endpoint {
			n++
		}
	}
	return n
}

// Last 某个接口收到的最后一个请求
func (s *Server) Last(endpoint string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Endpoint == endpoint {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// Transport 把任意主机的请求转发到本服务器，
// 使客户端可以使用真实的 testpgapi / pgapi 地址来决定接入环境
func (s *Server) Transport() http.RoundTripper {
	target, _ := url.Parse(s.URL)
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		r.URL.Scheme = target.Scheme
		r.URL.Host = target.Host
		r.Host = target.Host
		return http.DefaultTransport.RoundTrip(r)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-r.Context().Done():
			return
		}
	}

	var body map[string]interface{}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := Request{
		Path:     r.URL.Path,
		Endpoint: r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:],
		Body:     body,
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	handler := s.handlers[req.Endpoint]
	s.mu.Unlock()

	if handler == nil {
		handler = s.defaultHandler
	}
	code, resp := handler(req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) defaultHandler(req Request) (int, interface{}) {
	production := !strings.Contains(req.Path, "/ep9/")
	tidKey := "pgTid"
	if production {
		tidKey = "pgCno"
	}
	orderNo := cast.ToString(req.Body["shopOrderNo"])

	switch req.Endpoint {
	case "webpay":
		s.mu.Lock()
		if _, ok := s.amounts[orderNo]; !ok {
			s.amounts[orderNo] = cast.ToInt64(req.Body["amount"])
		}
		s.mu.Unlock()
		return http.StatusOK, map[string]interface{}{
			"resCd":       "0000",
			"resMsg":      "정상처리",
			"authPageUrl": "https://testpgapi.easypay.co.kr/webpay/auth?order=" + orderNo,
		}

	case "approval":
		s.mu.Lock()
		s.seq++
		tid := fmt.Sprintf("TID%s%04d", orderNo, s.seq)
		amount := s.amounts[orderNo]
		s.mu.Unlock()

		cardInfo := map[string]interface{}{"cardName": "신한카드", "cardNo": "5433331234567890"}
		if production {
			cardInfo = map[string]interface{}{"issuerName": "신한카드", "cardMaskNo": "5433-33**-****-7890"}
		}
		return http.StatusOK, map[string]interface{}{
			"resCd":  "0000",
			"resMsg": "정상처리",
			tidKey:   tid,
			"paymentInfo": map[string]interface{}{
				"payMethodTypeCode": "11",
				"approvalAmount":    amount,
				"cardInfo":          cardInfo,
			},
		}

	case "cancel", "revise":
		amountKey := "cancelAmount"
		if production {
			amountKey = "amount"
		}
		return http.StatusOK, map[string]interface{}{
			"resCd":   "0000",
			"resMsg":  "정상취소",
			tidKey:    req.Body[tidKey],
			amountKey: req.Body[amountKey],
		}

	case "status", "retrieveTransaction":
		s.mu.Lock()
		amount := s.amounts[orderNo]
		s.mu.Unlock()
		resp := map[string]interface{}{
			"resCd":  "0000",
			"resMsg": "정상",
			tidKey:   req.Body[tidKey],
			"amount": amount,
		}
		if production {
			resp["statusCode"] = "TS01"
			resp["statusMessage"] = "승인"
		} else {
			resp["payStatusNm"] = "승인"
			resp["cancelYn"] = "N"
		}
		return http.StatusOK, resp
	}

	return http.StatusNotFound, map[string]interface{}{"resCd": "9999", "resMsg": "unknown endpoint"}
}
