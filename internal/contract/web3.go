package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/chenzhijie/go-web3"
	"github.com/chenzhijie/go-web3/eth"
	"github.com/chenzhijie/go-web3/types"
	"github.com/ethereum/go-ethereum/common"
	eTypes "github.com/ethereum/go-ethereum/core/types"
)

// Web3Binding is the production Binding over a go-web3 connection. The signer
// is bound to the required chain id, so every raw transaction carries it and
// cannot be replayed on another network.
type Web3Binding struct {
	w3       *web3.Web3
	contract *eth.Contract
	address  string
	chainId  int64
}

func NewWeb3Binding(rpcUrl string, privKey string, contractAddress string, chainId int64) (*Web3Binding, error) {
	w3, err := web3.NewWeb3(rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("provider dial failed: %w", err)
	}
	w3.Eth.SetChainId(chainId)
	if privKey != "" {
		if err := w3.Eth.SetAccount(privKey); err != nil {
			return nil, fmt.Errorf("account setup failed: %w", err)
		}
	}
	contract, err := w3.Eth.NewContract(ShopAbi, contractAddress)
	if err != nil {
		return nil, fmt.Errorf("contract binding failed: %w", err)
	}
	return &Web3Binding{
		w3:       w3,
		contract: contract,
		address:  contractAddress,
		chainId:  chainId,
	}, nil
}

func (b *Web3Binding) Call(method string, args ...interface{}) (interface{}, error) {
	prepared := make([]interface{}, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok && common.IsHexAddress(s) {
			prepared[i] = common.HexToAddress(s)
			continue
		}
		prepared[i] = arg
	}
	return b.contract.Call(method, prepared...)
}

func (b *Web3Binding) Send(method string, value *big.Int, args ...interface{}) (string, error) {
	prepared := make([]interface{}, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok && common.IsHexAddress(s) {
			prepared[i] = common.HexToAddress(s)
			continue
		}
		prepared[i] = arg
	}
	data, err := b.contract.EncodeABI(method, prepared...)
	if err != nil {
		return "", err
	}
	if value == nil {
		value = big.NewInt(0)
	}
	nonce, err := b.w3.Eth.GetNonce(b.w3.Eth.Address(), nil)
	if err != nil {
		return "", err
	}
	call := &types.CallMsg{
		From:  b.w3.Eth.Address(),
		To:    common.HexToAddress(b.address),
		Data:  data,
		Value: types.NewCallMsgBigInt(value),
		Gas:   types.NewCallMsgBigInt(big.NewInt(types.MAX_GAS_LIMIT)),
	}
	gasLimit, err := b.w3.Eth.EstimateGas(call)
	if err != nil {
		return "", err
	}
	tip, err := b.w3.Eth.SuggestGasTipCap()
	if err != nil {
		return "", err
	}
	fee, err := b.w3.Eth.EstimateFee()
	if err != nil {
		return "", err
	}
	gasPrice := new(big.Int).Add(fee.BaseFee, tip)
	hash, err := b.w3.Eth.SendRawTransaction(
		common.HexToAddress(b.address),
		value,
		nonce,
		gasLimit,
		gasPrice,
		data,
	)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (b *Web3Binding) Receipt(txHash string) (*Receipt, error) {
	receipt, err := b.w3.Eth.GetTransactionReceipt(common.HexToHash(txHash))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	if receipt == nil {
		return nil, ErrReceiptNotFound
	}
	out := &Receipt{
		TxHash: txHash,
		Failed: receipt.Status == eTypes.ReceiptStatusFailed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}
