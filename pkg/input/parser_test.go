package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name      string
		targets   []string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "Single IP",
			targets:   []string{"192.168.1.1"},
			wantCount: 1,
			wantErr:   false,
		},
		{
			name:      "Hostname",
			targets:   []string{"example.com"},
			wantCount: 1,
			wantErr:   false,
		},
		{
			name:      "Multiple comma-separated",
			targets:   []string{"192.168.1.1,example.com,192.168.1.3"},
			wantCount: 3,
			wantErr:   false,
		},
		{
			name:      "Small CIDR",
			targets:   []string{"192.168.1.0/30"},
			wantCount: 4,
			wantErr:   false,
		},
		{
			name:      "Mixed host and CIDR",
			targets:   []string{"db.internal", "10.0.0.0/30"},
			wantCount: 5,
			wantErr:   false,
		},
		{
			name:      "IPv6 literal",
			targets:   []string{"2001:db8::1"},
			wantCount: 1,
			wantErr:   false,
		},
		{
			name:      "Invalid CIDR",
			targets:   []string{"192.168.1.0/99"},
			wantCount: 0,
			wantErr:   true,
		},
		{
			name:      "Oversized CIDR",
			targets:   []string{"10.0.0.0/8"},
			wantCount: 0,
			wantErr:   true,
		},
		{
			name:      "Invalid hostname",
			targets:   []string{"bad_host!"},
			wantCount: 0,
			wantErr:   true,
		},
		{
			name:      "Empty pieces skipped",
			targets:   []string{" , 192.168.1.1 , "},
			wantCount: 1,
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ParseTargets(tt.targets)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, hosts, tt.wantCount)
		})
	}
}

func TestParseTargetsHostnamePassthrough(t *testing.T) {
	hosts, err := ParseTargets([]string{"example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, hosts, "hostnames are left for the resolver")
}

func TestExpandCIDROrder(t *testing.T) {
	hosts, err := ExpandCIDR("192.0.2.0/30")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.0", "192.0.2.1", "192.0.2.2", "192.0.2.3"}, hosts)
}

func TestAddrRangeLazy(t *testing.T) {
	seq, err := AddrRange("10.0.0.0/8")
	require.NoError(t, err)

	// Consume only a handful from a range far too big to collect
	count := 0
	for range seq {
		count++
		if count == 5 {
			break
		}
	}
	assert.Equal(t, 5, count)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	content := `# monitored fleet
192.168.1.1
example.com

10.0.0.0/31
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	hosts, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.1", "example.com", "10.0.0.0", "10.0.0.1"}, hosts)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("/nonexistent/targets.txt")
	assert.Error(t, err)
}

func TestParseFileBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("ok.host\nbad host\n"), 0o644))

	_, err := ParseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestValidHostname(t *testing.T) {
	valid := []string{"a", "example.com", "sub-1.example.com", "example.com."}
	for _, h := range valid {
		assert.True(t, validHostname(h), h)
	}

	invalid := []string{"", "-lead.example", "trail-.example", "ex..ample", "under_score"}
	for _, h := range invalid {
		assert.False(t, validHostname(h), h)
	}
}
