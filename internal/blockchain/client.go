package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"signing-web-server/config"
	"signing-web-server/internal/util"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client : клиент одной сети. Отправляет zero-value транзакции
// с сервисного аккаунта и дожидается одного подтверждения.
type Client struct {
	client         *ethclient.Client
	privateKey     *ecdsa.PrivateKey
	fromAddress    common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
}

func NewClient(network *config.NetworkConfig, privateKeyHex string, confirmTimeout time.Duration) (*Client, error) {
	client, err := ethclient.Dial(network.RPCEndpoint)
	if err != nil {
		return nil, util.LogError("[Blockchain] ошибка подключения к RPC", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, util.LogError("[Blockchain] ошибка разбора приватного ключа", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if ok == false {
		return nil, fmt.Errorf("[Blockchain] неожиданный тип публичного ключа")
	}

	return &Client{
		client:         client,
		privateKey:     privateKey,
		fromAddress:    crypto.PubkeyToAddress(*publicKey),
		chainID:        big.NewInt(network.ChainID),
		confirmTimeout: confirmTimeout,
	}, nil
}

// SendSelfTransaction : транзакция самому себе; используется для якорения документа
func (c *Client) SendSelfTransaction(ctx context.Context, data []byte) (string, error) {
	return c.sendTransaction(ctx, c.fromAddress, data)
}

// SendTransactionTo : транзакция на адрес получателя; используется для инскрипций
func (c *Client) SendTransactionTo(ctx context.Context, toAddress string, data []byte) (string, error) {
	return c.sendTransaction(ctx, common.HexToAddress(toAddress), data)
}

func (c *Client) sendTransaction(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return "", util.LogError("[Blockchain] не удалось получить nonce", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", util.LogError("[Blockchain] не удалось получить цену газа", err)
	}

	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.fromAddress,
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		return "", util.LogError("[Blockchain] не удалось оценить газ", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return "", util.LogError("[Blockchain] ошибка подписи транзакции", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", util.LogError("[Blockchain] ошибка отправки транзакции", err)
	}

	receipt, err := c.waitConfirmation(ctx, signedTx.Hash())
	if err != nil {
		return "", util.LogError("[Blockchain] транзакция не подтверждена", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("[Blockchain] транзакция %s завершилась с ошибкой", signedTx.Hash().Hex())
	}

	return signedTx.Hash().Hex(), nil
}

// waitConfirmation : ждёт одно подтверждение не дольше confirmTimeout,
// чтобы зависшая сеть не удерживала фоновую задачу бесконечно
func (c *Client) waitConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// GetTransactionData : данные транзакции и метка времени её блока
func (c *Client) GetTransactionData(ctx context.Context, txHash string) ([]byte, uint64, time.Time, error) {
	hash := common.HexToHash(txHash)

	tx, isPending, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, 0, time.Time{}, util.LogError("[Blockchain] транзакция не найдена", err)
	}
	if isPending {
		return nil, 0, time.Time{}, fmt.Errorf("[Blockchain] транзакция %s ещё не включена в блок", txHash)
	}

	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, 0, time.Time{}, util.LogError("[Blockchain] не удалось получить receipt", err)
	}

	header, err := c.client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, 0, time.Time{}, util.LogError("[Blockchain] не удалось получить блок", err)
	}

	return tx.Data(), receipt.BlockNumber.Uint64(), time.Unix(int64(header.Time), 0).UTC(), nil
}
