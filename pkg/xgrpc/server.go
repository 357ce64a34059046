package xgrpc

import (
	"context"
	"errors"
	"net"

	"ccspot/pkg/model"
	"ccspot/pkg/ome"
	"ccspot/pkg/order"
	"ccspot/pkg/wallet"
	"ccspot/pkg/xlog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var logger = xlog.GetLogger().Named("grpc")

// CodeOf maps a service error to its grpc code
func CodeOf(err error) codes.Code {
	switch {
	case errors.Is(err, model.ErrInvalidAmount), errors.Is(err, model.ErrInvalidOrder):
		return codes.InvalidArgument
	case errors.Is(err, model.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, model.ErrInvalidOrderState), errors.Is(err, model.ErrMarketInactive):
		return codes.FailedPrecondition
	case errors.Is(err, model.ErrInsufficientBalance):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	c := CodeOf(err)
	if c == codes.Internal {
		logger.Errorf("grpc call failed with err:%s", err)
	}
	return status.Error(c, err.Error())
}

type Server struct {
	orders *order.Service
	wallet *wallet.Service
	engine *ome.Engine // nil when matching runs in a separate process
}

var _ ExchangeServer = (*Server)(nil)

func NewServer(orders *order.Service, w *wallet.Service, engine *ome.Engine) *Server {
	return &Server{orders: orders, wallet: w, engine: engine}
}

func (s *Server) PlaceOrder(ctx context.Context, in *order.PlaceRequest) (*model.Order, error) {
	o, err := s.orders.PlaceOrder(ctx, *in)
	return o, toStatus(err)
}

func (s *Server) CancelOrder(ctx context.Context, in *CancelOrderRequest) (*model.Order, error) {
	o, err := s.orders.CancelOrder(ctx, in.OrderID, in.Owner)
	return o, toStatus(err)
}

func (s *Server) MatchOrder(ctx context.Context, in *MatchOrderRequest) (*TradesReply, error) {
	if s.engine == nil {
		return nil, status.Error(codes.Unimplemented, "matching is not served by this process")
	}
	trades, err := s.engine.MatchOrder(ctx, in.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TradesReply{Trades: trades}, nil
}

func (s *Server) Deposit(ctx context.Context, in *FundsRequest) (*model.Balance, error) {
	b, err := s.wallet.Deposit(ctx, in.Owner, in.Asset, in.Amount)
	return b, toStatus(err)
}

func (s *Server) Withdraw(ctx context.Context, in *FundsRequest) (*model.Balance, error) {
	b, err := s.wallet.Withdraw(ctx, in.Owner, in.Asset, in.Amount)
	return b, toStatus(err)
}

func (s *Server) Transfer(ctx context.Context, in *TransferRequest) (*Empty, error) {
	err := s.wallet.Transfer(ctx, in.From, in.To, in.Asset, in.Amount, in.Reason, in.RefID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) GetBalances(ctx context.Context, in *BalancesRequest) (*BalancesReply, error) {
	bs, err := s.wallet.Balances(ctx, in.Owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BalancesReply{Balances: bs}, nil
}

// Serve registers srv on a new grpc server and serves addr until the listener fails
func Serve(addr string, srv ExchangeServer) (err error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return
	}

	grpcServer := grpc.NewServer()
	RegisterExchangeServer(grpcServer, srv)

	logger.Infof("grpc server listening %s", addr)
	return grpcServer.Serve(lis)
}
