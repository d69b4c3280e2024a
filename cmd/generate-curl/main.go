package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"minichain/blockchain"
	"minichain/jsonx"
	"minichain/logx"
	"minichain/mocks"
)

type script struct {
	name string
	body string
}

func main() {
	baseURL := flag.String("node", "http://localhost:5000", "Base URL of the node the scripts call")
	peerURL := flag.String("peer", "http://localhost:5001", "Peer URL registered by add_peer.sh")
	outDir := flag.String("out", "curl", "Directory to write scripts to")
	txCount := flag.Int("txs", 5, "Number of random transactions to generate")
	seed := flag.Int64("seed", 1, "Random seed for generated transactions")
	flag.Parse()

	fmt.Println("Generating curl test scripts...")

	scripts, err := buildScripts(*baseURL, *peerURL, *txCount, *seed)
	if err != nil {
		logx.Error("CMD", "Failed to build scripts: ", err)
		os.Exit(1)
	}

	for _, s := range scripts {
		filename := filepath.Join(*outDir, s.name)
		if err := writeScript(filename, s.body); err != nil {
			logx.Error("CMD", fmt.Sprintf("Failed to write script %s: %v", filename, err))
			continue
		}
		fmt.Printf("Generated: %s\n", filename)
	}

	fmt.Printf("\nGenerated %d test scripts successfully!\n", len(scripts))
	fmt.Println("Usage:")
	fmt.Println("  1. Start your node: go run ./cmd/node run")
	fmt.Printf("  2. Run individual tests: ./%s/get_chain.sh\n", *outDir)
	fmt.Printf("  3. Run all sequentially: ./%s/run_all.sh\n", *outDir)
}

func curlScript(title, method, url, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/bash\necho \"=== Testing %s %s ===\"\necho \"%s\"\necho \"\"\n\n", method, url, title)
	fmt.Fprintf(&b, "curl -X %s %s \\\n", method, url)
	if body != "" {
		fmt.Fprintf(&b, "  -H \"Content-Type: application/json\" \\\n  -d '%s' \\\n", body)
	}
	b.WriteString("  --max-time 30 \\\n  --connect-timeout 2 \\\n  --fail-with-body \\\n  | jq '.' 2>/dev/null || cat\necho -e \"\\n\"\n")
	return b.String()
}

func buildScripts(baseURL, peerURL string, txCount int, seed int64) ([]script, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	rng := rand.New(rand.NewSource(seed))

	scripts := []script{
		{"get_chain.sh", curlScript("Full chain", "GET", baseURL+"/chain", "")},
		{"get_height.sh", curlScript("Chain height", "GET", baseURL+"/chain/height", "")},
		{"get_head.sh", curlScript("Chain head and its hash", "GET", baseURL+"/chain/head", "")},
		{"get_genesis.sh", curlScript("Genesis by hash "+blockchain.GenesisHash.Short(), "GET", baseURL+"/blocks/"+blockchain.GenesisHash.String(), "")},
		{"get_pending.sh", curlScript("Pending pool", "GET", baseURL+"/transactions/pending", "")},
		{"mine.sh", curlScript("Mine a block", "GET", baseURL+"/mine", "")},
		{"list_peers.sh", curlScript("Registered peers", "GET", baseURL+"/nodes", "")},
		{"peer_status.sh", curlScript("Peer status", "GET", baseURL+"/nodes/status", "")},
		{"resolve.sh", curlScript("Start a consensus round", "GET", baseURL+"/nodes/resolve", "")},
		{"metrics.sh", strings.Replace(curlScript("Prometheus metrics", "GET", baseURL+"/metrics", ""), "| jq '.' 2>/dev/null || cat", "| head -n 40", 1)},
	}

	peerBody, err := jsonx.Marshal(peerURL)
	if err != nil {
		return nil, err
	}
	scripts = append(scripts, script{"add_peer.sh", curlScript("Register "+peerURL, "POST", baseURL+"/nodes/add", string(peerBody))})

	runAll := []string{"get_height.sh"}
	for i, tx := range mocks.GenerateTransactions(rng, txCount) {
		body, err := jsonx.Marshal(tx)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("post_tx_%d.sh", i+1)
		scripts = append(scripts, script{name, curlScript(fmt.Sprintf("Transaction %d", i+1), "POST", baseURL+"/transactions/new", string(body))})
		runAll = append(runAll, name)
	}
	runAll = append(runAll, "get_pending.sh", "mine.sh", "get_chain.sh", "add_peer.sh", "list_peers.sh", "resolve.sh", "peer_status.sh")

	var seq strings.Builder
	fmt.Fprintf(&seq, `#!/bin/bash
echo "=== Exercising every route ==="
echo "Make sure your node is running first!"
echo ""

# Check if server is running
if ! curl -s --connect-timeout 2 --max-time 2 %s/chain/height > /dev/null; then
    echo "Server not responding at %s"
    echo "Start your node with: go run ./cmd/node run"
    exit 1
fi

DIR="$(cd "$(dirname "$0")" && pwd)"

`, baseURL, baseURL)
	for _, name := range runAll {
		fmt.Fprintf(&seq, "\"$DIR/%s\" || echo \"%s failed, continuing...\"\n", name, name)
	}
	seq.WriteString("echo \"Done!\"\n")
	scripts = append(scripts, script{"run_all.sh", seq.String()})

	return scripts, nil
}

func writeScript(filename, content string) error {
	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0755)
}
