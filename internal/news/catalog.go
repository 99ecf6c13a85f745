// Package news serves the market news feed from an immutable article
// catalog.
package news

import (
	"fmt"
	"sort"
	"time"
)

// Category is an article's topic.
type Category string

const (
	CategoryMarket     Category = "market"
	CategoryBitcoin    Category = "bitcoin"
	CategoryEthereum   Category = "ethereum"
	CategoryAltcoins   Category = "altcoins"
	CategoryDeFi       Category = "defi"
	CategoryNFT        Category = "nft"
	CategoryRegulation Category = "regulation"
	CategoryGeneral    Category = "general"
)

// ParseCategory accepts a known category name.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategoryMarket, CategoryBitcoin, CategoryEthereum, CategoryAltcoins,
		CategoryDeFi, CategoryNFT, CategoryRegulation, CategoryGeneral:
		return c, true
	}
	return "", false
}

// Article is one news item. Views is filled in when served.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    Category  `json:"category"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	Breaking    bool      `json:"is_breaking"`
	Views       int64     `json:"views"`
}

// Catalog is an immutable set of articles, newest first.
type Catalog struct {
	articles []Article
	byID     map[string]int
}

// NewCatalog validates articles and orders them by publication time,
// newest first, ties by id.
func NewCatalog(articles []Article) (*Catalog, error) {
	c := &Catalog{
		articles: make([]Article, len(articles)),
		byID:     make(map[string]int, len(articles)),
	}
	copy(c.articles, articles)
	for _, a := range c.articles {
		if a.ID == "" || a.Title == "" {
			return nil, fmt.Errorf("article %q: id and title are required", a.ID)
		}
		if _, ok := ParseCategory(string(a.Category)); !ok {
			return nil, fmt.Errorf("article %s: unknown category %q", a.ID, a.Category)
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("article %s: duplicate id", a.ID)
		}
		c.byID[a.ID] = 0
	}
	sort.SliceStable(c.articles, func(i, j int) bool {
		a, b := c.articles[i], c.articles[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
	for i, a := range c.articles {
		c.byID[a.ID] = i
	}
	return c, nil
}

// Len returns the number of articles.
func (c *Catalog) Len() int { return len(c.articles) }

// Get returns the article with id.
func (c *Catalog) Get(id string) (Article, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Article{}, false
	}
	return c.articles[i], true
}

// Filter returns the articles matching keep, newest first.
func (c *Catalog) Filter(keep func(Article) bool) []Article {
	out := make([]Article, 0, len(c.articles))
	for _, a := range c.articles {
		if keep == nil || keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// DefaultCatalog is the seeded feed. The first article is published at
// latest and each later one an hour earlier.
func DefaultCatalog(latest time.Time) *Catalog {
	seed := []Article{
		{ID: "bitcoin-100k", Title: "Bitcoin Surges Past $100K as Institutional Adoption Grows",
			Description: "Bitcoin has broken through the $100,000 barrier as major financial institutions continue to embrace cryptocurrency.",
			Content:     "Bitcoin has surpassed the $100,000 mark for the first time, driven by increasing institutional adoption and growing mainstream acceptance. Major banks and hedge funds have been accumulating BTC.",
			Source:      "CryptoNews", Category: CategoryBitcoin, Tags: []string{"bitcoin", "btc", "institutional", "milestone"}, Breaking: true},
		{ID: "eth-staking-rewards", Title: "Ethereum 2.0 Staking Rewards Hit All-Time High",
			Description: "ETH stakers are seeing record returns as network activity surges.",
			Content:     "Ethereum validators are seeing record staking rewards as the network processes more transactions than ever, with over 30 million ETH now staked.",
			Source:      "ETH Daily", Category: CategoryEthereum, Tags: []string{"ethereum", "eth", "staking", "rewards"}},
		{ID: "solana-defi-tvl", Title: "Solana DeFi Ecosystem Reaches $50B TVL",
			Description: "The Solana blockchain continues its rise in decentralized finance.",
			Content:     "Solana's DeFi ecosystem has reached $50 billion in total value locked, drawing protocols and users looking for low fees.",
			Source:      "DeFi Pulse", Category: CategoryDeFi, Tags: []string{"solana", "sol", "defi", "tvl"}},
		{ID: "sec-spot-etfs", Title: "SEC Approves Multiple Spot Crypto ETFs",
			Description: "Regulatory clarity brings a new wave of investment products to market.",
			Content:     "The Securities and Exchange Commission has approved several spot cryptocurrency ETFs, opening regulated exposure to traditional investors.",
			Source:      "Regulatory Watch", Category: CategoryRegulation, Tags: []string{"sec", "etf", "regulation", "bitcoin"}, Breaking: true},
		{ID: "nft-recovery", Title: "NFT Market Shows Signs of Recovery",
			Description: "Blue-chip NFT collections lead the resurgence in digital collectibles.",
			Content:     "After months of declining sales, blue-chip NFT collections are seeing renewed trading volume.",
			Source:      "NFT Insider", Category: CategoryNFT, Tags: []string{"nft", "bayc", "cryptopunks", "digital art"}},
		{ID: "xrp-legal-win", Title: "XRP Wins Major Legal Victory Against SEC",
			Description: "Court ruling provides clarity for cryptocurrency classification.",
			Content:     "A court ruled that XRP sales on exchanges are not securities, a significant win for Ripple Labs.",
			Source:      "Legal Crypto", Category: CategoryRegulation, Tags: []string{"xrp", "ripple", "sec", "legal"}},
		{ID: "cardano-dapps", Title: "Cardano Smart Contracts Hit 10,000 DApps",
			Description: "ADA ecosystem growth accelerates with developer activity.",
			Content:     "More than 10,000 decentralized applications are now deployed on Cardano.",
			Source:      "Cardano Times", Category: CategoryAltcoins, Tags: []string{"cardano", "ada", "dapps", "smart contracts"}},
		{ID: "volume-10t", Title: "Global Crypto Trading Volume Hits $10 Trillion Daily",
			Description: "Market activity reaches unprecedented levels across all exchanges.",
			Content:     "Daily cryptocurrency trading volume has reached $10 trillion on growing retail and institutional participation.",
			Source:      "Market Watch", Category: CategoryMarket, Tags: []string{"trading", "volume", "market", "exchanges"}, Breaking: true},
		{ID: "layer2-throughput", Title: "Layer 2 Solutions Process More Transactions Than Ethereum Mainnet",
			Description: "Scaling solutions prove their worth with record throughput.",
			Content:     "Arbitrum, Optimism and Base now handle more transactions than Ethereum mainnet at a fraction of the cost.",
			Source:      "L2 Beat", Category: CategoryEthereum, Tags: []string{"layer2", "arbitrum", "optimism", "scaling"}},
		{ID: "doge-payments", Title: "Dogecoin Integration by Major Payment Processor",
			Description: "Meme coin gains legitimacy with mainstream payment adoption.",
			Content:     "A major payment processor will accept Dogecoin for merchant payments.",
			Source:      "Doge Daily", Category: CategoryAltcoins, Tags: []string{"dogecoin", "doge", "payments", "adoption"}},
		{ID: "btc-difficulty-high", Title: "Bitcoin Mining Difficulty Reaches New All-Time High",
			Description: "Network security strengthens as more miners join.",
			Content:     "Bitcoin's mining difficulty has reached a new high as more miners secure the network.",
			Source:      "Mining Report", Category: CategoryBitcoin, Tags: []string{"bitcoin", "mining", "difficulty", "hashrate"}},
		{ID: "central-bank-reserves", Title: "Central Banks Explore Crypto Reserve Assets",
			Description: "Multiple countries consider adding Bitcoin to reserves.",
			Content:     "Several central banks are reportedly exploring cryptocurrency as a reserve asset.",
			Source:      "Central Bank Watch", Category: CategoryRegulation, Tags: []string{"central banks", "reserves", "adoption", "bitcoin"}, Breaking: true},
	}
	for i := range seed {
		seed[i].URL = "#"
		seed[i].PublishedAt = latest.Add(-time.Duration(i) * time.Hour)
	}
	c, err := NewCatalog(seed)
	if err != nil {
		panic(err) // static data
	}
	return c
}
