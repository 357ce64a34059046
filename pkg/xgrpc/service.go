package xgrpc

import (
	"context"

	"ccspot/pkg/model"
	"ccspot/pkg/order"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

const ServiceName = "ccspot.Exchange"

type CancelOrderRequest struct {
	OrderID int64 `json:"orderId"`
	Owner   int64 `json:"owner"`
}

type MatchOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

type TradesReply struct {
	Trades []*model.Trade `json:"trades"`
}

type FundsRequest struct {
	Owner  int64           `json:"owner"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	From   int64           `json:"from"`
	To     int64           `json:"to"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	RefID  int64           `json:"refId"`
}

type Empty struct{}

type BalancesRequest struct {
	Owner int64 `json:"owner"`
}

type BalancesReply struct {
	Balances []*model.Balance `json:"balances"`
}

type ExchangeServer interface {
	PlaceOrder(context.Context, *order.PlaceRequest) (*model.Order, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*model.Order, error)
	MatchOrder(context.Context, *MatchOrderRequest) (*TradesReply, error)
	Deposit(context.Context, *FundsRequest) (*model.Balance, error)
	Withdraw(context.Context, *FundsRequest) (*model.Balance, error)
	Transfer(context.Context, *TransferRequest) (*Empty, error)
	GetBalances(context.Context, *BalancesRequest) (*BalancesReply, error)
}

// unary builds the method handler of one request type
func unary[Req any, Rep any](name string, call func(ExchangeServer, context.Context, *Req) (*Rep, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*Req))
			})
		},
	}
}

var ExchangeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceOrder", ExchangeServer.PlaceOrder),
		unary("CancelOrder", ExchangeServer.CancelOrder),
		unary("MatchOrder", ExchangeServer.MatchOrder),
		unary("Deposit", ExchangeServer.Deposit),
		unary("Withdraw", ExchangeServer.Withdraw),
		unary("Transfer", ExchangeServer.Transfer),
		unary("GetBalances", ExchangeServer.GetBalances),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ExchangeServiceDesc, srv)
}

// Client calls an Exchange server with the json codec
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Rep any](ctx context.Context, c *Client, method string, in any) (*Rep, error) {
	out := new(Rep)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlaceOrder(ctx context.Context, in *order.PlaceRequest) (*model.Order, error) {
	return invoke[model.Order](ctx, c, "PlaceOrder", in)
}

func (c *Client) CancelOrder(ctx context.Context, in *CancelOrderRequest) (*model.Order, error) {
	return invoke[model.Order](ctx, c, "CancelOrder", in)
}

func (c *Client) MatchOrder(ctx context.Context, in *MatchOrderRequest) (*TradesReply, error) {
	return invoke[TradesReply](ctx, c, "MatchOrder", in)
}

func (c *Client) Deposit(ctx context.Context, in *FundsRequest) (*model.Balance, error) {
	return invoke[model.Balance](ctx, c, "Deposit", in)
}

func (c *Client) Withdraw(ctx context.Context, in *FundsRequest) (*model.Balance, error) {
	return invoke[model.Balance](ctx, c, "Withdraw", in)
}

func (c *Client) Transfer(ctx context.Context, in *TransferRequest) (*Empty, error) {
	return invoke[Empty](ctx, c, "Transfer", in)
}

func (c *Client) GetBalances(ctx context.Context, in *BalancesRequest) (*BalancesReply, error) {
	return invoke[BalancesReply](ctx, c, "GetBalances", in)
}
