package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name LadderGateway --dir ../usecase --inpackage --testonly --output ../usecase --outpkg usecase --structname mockLadderGateway --filename mock_ladder_gateway_test.go
