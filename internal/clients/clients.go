// clients содержит транспорт исходящих HTTP-вызовов к бэкенду.
//
// Transport — узкий контракт, которым пользуется apiclient.Executor:
// «отправь запрос, верни статус и тело». Сквозные задачи (request id,
// user-agent, таймаут, логирование) навешиваются цепочкой интерсепторов
// вокруг базового вызова, как у gRPC-клиента.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize ограничивает размер читаемого тела ответа.
const maxBodySize = 8 << 20

// Request — исходящий запрос в терминах транспорта.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response — полностью прочитанный ответ.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport отправляет запрос и возвращает ответ с любым статусом.
// Ошибка означает сбой до получения статуса (DNS, соединение, таймаут).
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Invoker — вызов следующего звена цепочки.
type Invoker func(ctx context.Context, req *Request) (*Response, error)

// Interceptor оборачивает Invoker, аналог grpc.UnaryClientInterceptor.
type Interceptor func(ctx context.Context, req *Request, next Invoker) (*Response, error)

// HTTPTransport — Transport поверх *http.Client.
type HTTPTransport struct {
	client *http.Client
	invoke Invoker
}

// NewHTTP собирает транспорт. Интерсепторы применяются в порядке
// перечисления: первый видит запрос первым.
func NewHTTP(client *http.Client, chain ...Interceptor) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}

	t := &HTTPTransport{client: client}
	t.invoke = Chain(t.do, chain...)

	return t
}

// Send выполняет запрос через цепочку интерсепторов.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	return t.invoke(ctx, req)
}

// Chain сворачивает интерсепторы вокруг base.
func Chain(base Invoker, chain ...Interceptor) Invoker {
	next := base
	for i := len(chain) - 1; i >= 0; i-- {
		ic, inner := chain[i], next
		next = func(ctx context.Context, req *Request) (*Response, error) {
			return ic(ctx, req, inner)
		}
	}

	return next
}

// do — базовый вызов: тело ответа читается целиком внутри ctx, поэтому
// таймаут интерсептора покрывает и чтение.
func (t *HTTPTransport) do(ctx context.Context, req *Request) (*Response, error) {
	const op = "clients.HTTPTransport.do"

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	hreq.Header = req.Header.Clone()

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
