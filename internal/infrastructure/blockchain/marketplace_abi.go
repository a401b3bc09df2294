package blockchain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// marketplaceABIJSON is the interface of the energy marketplace contract
const marketplaceABIJSON = `[
	{"type":"function","name":"listingCount","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"uint256","internalType":"uint256"}]},
	{"type":"function","name":"getListing","stateMutability":"view",
	 "inputs":[{"name":"_listingId","type":"uint256","internalType":"uint256"}],
	 "outputs":[
		{"name":"seller","type":"address","internalType":"address"},
		{"name":"amount","type":"uint256","internalType":"uint256"},
		{"name":"price","type":"uint256","internalType":"uint256"},
		{"name":"energyType","type":"string","internalType":"string"},
		{"name":"active","type":"bool","internalType":"bool"}]},
	{"type":"function","name":"listEnergy","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_amount","type":"uint256","internalType":"uint256"},
		{"name":"_price","type":"uint256","internalType":"uint256"},
		{"name":"_energyType","type":"string","internalType":"string"}],
	 "outputs":[]},
	{"type":"function","name":"buyEnergy","stateMutability":"payable",
	 "inputs":[
		{"name":"_listingId","type":"uint256","internalType":"uint256"},
		{"name":"_amount","type":"uint256","internalType":"uint256"}],
	 "outputs":[]},
	{"type":"event","name":"EnergyListed","anonymous":false,"inputs":[
		{"indexed":true,"name":"listingId","type":"uint256","internalType":"uint256"},
		{"indexed":false,"name":"seller","type":"address","internalType":"address"},
		{"indexed":false,"name":"amount","type":"uint256","internalType":"uint256"},
		{"indexed":false,"name":"price","type":"uint256","internalType":"uint256"}]},
	{"type":"event","name":"EnergySold","anonymous":false,"inputs":[
		{"indexed":true,"name":"listingId","type":"uint256","internalType":"uint256"},
		{"indexed":false,"name":"buyer","type":"address","internalType":"address"},
		{"indexed":false,"name":"amount","type":"uint256","internalType":"uint256"}]}
]`

// Contract method and event names
const (
	methodListingCount = "listingCount"
	methodGetListing   = "getListing"
	methodListEnergy   = "listEnergy"
	methodBuyEnergy    = "buyEnergy"

	eventEnergyListed = "EnergyListed"
	eventEnergySold   = "EnergySold"
)

// MarketplaceABI is the parsed marketplace contract interface
var MarketplaceABI = mustParseABI(marketplaceABIJSON)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("invalid marketplace ABI: " + err.Error())
	}
	return parsed
}

// energyListedEvent mirrors EnergyListed(uint256 indexed listingId, address seller, uint256 amount, uint256 price)
type energyListedEvent struct {
	ListingId *big.Int
	Seller    common.Address
	Amount    *big.Int
	Price     *big.Int
}

// energySoldEvent mirrors EnergySold(uint256 indexed listingId, address buyer, uint256 amount)
type energySoldEvent struct {
	ListingId *big.Int
	Buyer     common.Address
	Amount    *big.Int
}
