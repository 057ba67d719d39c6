package testtool

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// SetupContainer 通用函式來啟動測試容器。
// testcontainers 在找不到 docker 時會 panic,
// 這裡轉成 error 讓呼叫端能跳過測試而不是整個失敗
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (container testcontainers.Container, host, port string, err error) {
	defer func() {
		if r := recover(); r != nil {
			container, host, port = nil, "", ""
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()

	container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}

	host, err = container.Host(ctx)
	if err != nil {
		return nil, "", "", err
	}

	// 轉換 ExposedPorts[0] 為 nat.Port
	natPort, err := nat.NewPort("tcp", req.ExposedPorts[0][:len(req.ExposedPorts[0])-4]) // 去掉 "/tcp"
	if err != nil {
		return nil, "", "", err
	}

	mapped, err := container.MappedPort(ctx, natPort)
	if err != nil {
		return nil, "", "", err
	}

	return container, host, mapped.Port(), nil
}
