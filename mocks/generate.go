package mocks

//go:generate mockgen -destination=./mock_router.go -package=mocks github.com/rxtech-lab/argo-chain/internal/orders Router
//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/argo-chain/internal/broker Broker
//go:generate mockgen -destination=./mock_sink.go -package=mocks github.com/rxtech-lab/argo-chain/internal/report Sink
//go:generate mockgen -destination=./mock_handler.go -package=mocks github.com/rxtech-lab/argo-chain/internal/chain Handler
