package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_IsReadOnly(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		cmd      string
		readOnly bool
	}{
		{"", true},
		{"   ", true},
		{"ls -la", true},
		{"rm -rf /tmp/x", false},
		{"echo hi > out.txt", false},
		{"echo hi >> out.txt", false},
		{"cat < in.txt", false},
		{"go test ./... 2>&1", false},
		{"make &> build.log", false},
		{"cat <<< hello", false},
		{"git status", true},
		{"sed -i 's/a/b/' f.txt", false},
		{"sed -n 's/a/b/p' f.txt", true},
		{"sed -ni 's/a/b/p' f.txt", false},
		{"sed --in-place=.bak 's/a/b/' f.txt", false},
		{"sed 's/a/b/w out.txt' f.txt", false},
		{"find . -name '*.tmp' -delete", false},
		{"find . -name '*.go'", true},
		{"find . -name '*.tmp' -exec rm {} \\;", false},
		{"find . -name '*.go' -exec grep -l TODO {} +", true},
		{"pip show requests", true},
		{"pip install requests", false},
		{"pip3 list", true},
		{"npm ls", true},
		{"npm install", false},
		{"yarn why lodash", true},
		{"python -c 'print(1)'", true},
		{"python3 -m pip list", true},
		{"python3 -m pip install x", false},
		{"python3 -m json.tool data.json", true},
		{"python script.py", false},
		{"awk '{print $1}' file", true},
		{"awk '{print $1 > \"out\"}' file", false},
		{"awk '{system(\"rm x\")}' file", false},
		{"awk -F'|' '{print $2}' file", true},
		{"awk '$1 > 5' file", true},
		{"awk '$1 > 5 {print $2}' file", true},
		{"awk '/a|b/' file", true},
		{"awk '{print $1 | \"sort\"}' file", false},
		{"awk 'BEGIN{\"date\" | getline d}'", false},
		{"awk '{printf \"%s\", $1 >> \"log\"}' file", false},
		{"echo '>'", true},
		{"grep 'a > b' file.txt", true},
		{"ls | grep foo", true},
		{"ls && rm foo", false},
		{"ls; touch x", false},
		{"ls & rm x", false},
		{"ls\nrm x", false},
		{"echo $(rm -rf x)", false},
		{"echo `touch x`", false},
		{"echo $(git rev-parse HEAD)", true},
		{"echo $((1 + 2))", true},
		{"(cd sub && ls)", true},
		{"FOO=bar ls", true},
		{"env -i FOO=bar cat x", true},
		{"time rm x", false},
		{"/bin/ls -l", true},
		{"LS -la", true},
		{"xargs", true},
		{"find . -name '*.log' | xargs rm", false},
		{"find . | xargs -I {} cat {}", true},
		{"ls | xargs grep foo", true},
		{"echo commit | xargs git", false},
		{"echo -i | xargs sed -n p f.txt", false},
		{"sh -c 'ls -la'", true},
		{"bash -lc 'git status && ls'", true},
		{"bash -c 'rm x'", false},
		{"bash -o pipefail -c 'echo hi > f'", false},
		{"sh script.sh", false},
		{"bash --version", true},
		{"eval ls", true},
		{"eval 'touch x'", false},
		{"sort -o out.txt in.txt", false},
		{"sort in.txt", true},
		{"yq -i '.a = 1' f.yml", false},
		{"yq '.a' f.yml", true},
		{"cd /tmp", true},
		{"sudo ls", false},
		{"unknowncmd --flag", false},
		{"echo ${HOME}", true},
		{"{ ls; pwd; }", true},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.readOnly, c.IsReadOnly(tt.cmd))
		})
	}
}

func TestClassifier_Git(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		cmd      string
		readOnly bool
	}{
		{"git log --oneline -5", true},
		{"git diff HEAD~1", true},
		{"git -C sub status", true},
		{"git --no-pager log", true},
		{"git -c color.ui=never show", true},
		{"git --version", true},
		{"git", true},
		{"git commit -m 'x'", false},
		{"git push", false},
		{"git checkout main", false},
		{"git branch", true},
		{"git branch -a", true},
		{"git branch --list 'feat*'", true},
		{"git branch new-feature", false},
		{"git branch -D old", false},
		{"git tag", true},
		{"git tag -l", true},
		{"git tag v1.0", false},
		{"git remote -v", true},
		{"git remote show origin", true},
		{"git remote add origin url", false},
		{"git config --get user.name", true},
		{"git config --list", true},
		{"git config user.name bob", false},
		{"git stash list", true},
		{"git stash", false},
		{"git stash pop", false},
		{"git worktree list", true},
		{"git worktree add ../x", false},
		{"git reflog", true},
		{"git reflog expire --all", false},
		{"git submodule status", true},
		{"git submodule update --init", false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.readOnly, c.IsReadOnly(tt.cmd))
		})
	}
}

func TestClassifier_ExtraSafe(t *testing.T) {
	strict := NewClassifier()
	permissive := NewClassifier(WithExtraSafe(false))

	assert.False(t, strict.IsReadOnly("mytool --check"))
	assert.True(t, permissive.IsReadOnly("mytool --check"))

	// Known write commands stay write-like either way.
	assert.False(t, permissive.IsReadOnly("rm -rf x"))
	assert.False(t, permissive.IsReadOnly("echo x > y"))
}

func TestClassifier_CustomReadOnly(t *testing.T) {
	c := NewClassifier(WithReadOnly("kubectl", " Terraform ", "rm"))

	assert.True(t, c.IsReadOnly("kubectl get pods"))
	assert.True(t, c.IsReadOnly("terraform plan"))
	assert.False(t, c.IsReadOnly("rm x"), "write set wins over custom allow-list")
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier()

	v := c.Classify("ls -la && rm -rf build")
	require.False(t, v.ReadOnly)
	assert.Equal(t, "rm -rf build", v.Segment)
	assert.Contains(t, v.Reason, "rm")

	v = c.Classify("echo hi > out.txt")
	require.False(t, v.ReadOnly)
	assert.Contains(t, v.Reason, "redirection")

	v = c.Classify("git status")
	assert.True(t, v.ReadOnly)
	assert.Empty(t, v.Reason)
}

func TestSplitSegments(t *testing.T) {
	tests := []struct {
		cmd  string
		want []string
	}{
		{"ls", []string{"ls"}},
		{"a | b || c && d; e & f", []string{"a", "b", "c", "d", "e", "f"}},
		{"echo 'a; b' | wc", []string{"echo 'a; b'", "wc"}},
		{`echo "x && y"`, []string{`echo "x && y"`}},
		{"echo $(rm x) done", []string{"rm x", "echo  done"}},
		{"echo `date`", []string{"date", "echo"}},
		{"(cd a && make)", []string{"cd a", "make"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, splitSegments(tt.cmd))
		})
	}
}

func TestClassifier_ReadOnlySubcommands(t *testing.T) {
	c := NewClassifier(WithReadOnlySubcommands("warden", "mode", "todos show", "classify *"))

	tests := []struct {
		cmd      string
		readOnly bool
	}{
		{"warden mode", true},
		{"warden mode --json", true},
		{"warden mode implementation", false},
		{"warden todos show", true},
		{"warden todos clear", false},
		{"warden classify 'rm -rf x'", true},
		{"warden", false},
		{"/usr/local/bin/warden todos show", true},
		{"echo implementation | xargs warden mode", false},
		{"sh -c 'warden todos show'", true},
		{"sh -c 'warden todos clear'", false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.readOnly, c.IsReadOnly(tt.cmd))
		})
	}
}

func TestShellPayload(t *testing.T) {
	tests := []struct {
		words   []string
		payload string
		ok      bool
	}{
		{[]string{"sh", "-c", "ls"}, "ls", true},
		{[]string{"/bin/bash", "-lc", "warden mode"}, "warden mode", true},
		{[]string{"bash", "-o", "pipefail", "-c", "ls | wc"}, "ls | wc", true},
		{[]string{"bash", "--norc", "-c", "pwd"}, "pwd", true},
		{[]string{"eval", "warden", "bypass", "on"}, "warden bypass on", true},
		{[]string{"sh", "script.sh", "-c"}, "", false},
		{[]string{"sh", "-c"}, "", false},
		{[]string{"eval"}, "", false},
		{[]string{"ls", "-c", "x"}, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		payload, ok := ShellPayload(tt.words)
		assert.Equal(t, tt.ok, ok, "%v", tt.words)
		assert.Equal(t, tt.payload, payload, "%v", tt.words)
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"warden", "mode", "show"}, Words("FOO=1 env warden mode show"))
	assert.Empty(t, Words("   "))
	assert.Equal(t, []string{"ls", "a b"}, Words(`time ls "a b"`))
}
