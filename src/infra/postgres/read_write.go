package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// ReadWriteClient separa o pool da réplica de leitura do pool do primário.
type ReadWriteClient struct {
	readPool  *pgxpool.Pool
	writePool *pgxpool.Pool
}

func NewReadWriteClient(read Config, write Config) (*ReadWriteClient, error) {
	readPool, err := NewPostgresClient(read)
	if err != nil {
		return nil, err
	}

	writePool, err := NewPostgresClient(write)
	if err != nil {
		readPool.Close()
		return nil, err
	}

	return &ReadWriteClient{
		readPool:  readPool,
		writePool: writePool,
	}, nil
}

func (rwc *ReadWriteClient) GetReadPool() *pgxpool.Pool {
	return rwc.readPool
}

func (rwc *ReadWriteClient) GetWritePool() *pgxpool.Pool {
	return rwc.writePool
}

func (rwc *ReadWriteClient) Close() {
	if rwc.readPool != nil {
		rwc.readPool.Close()
	}
	if rwc.writePool != nil {
		rwc.writePool.Close()
	}
}
