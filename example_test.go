package cogflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/cogflow"
	"github.com/aretw0/cogflow/pkg/adapters/memory"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/lm"
)

// ExampleNew_memory builds a one-prompt program in code and runs it against a
// scripted model.
func ExampleNew_memory() {
	loader, err := memory.NewFromPrompts("hello", &domain.Prompt{
		Name: "greet",
		Desc: []string{"Greet the user."},
		Fields: []*domain.Field{
			{Name: "greeting", Depth: 1, Format: &domain.Format{Kind: domain.FormatCompletion}},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	eng, err := cogflow.New("hello",
		cogflow.WithLoader(loader),
		cogflow.WithModel(lm.NewOracle("> greeting(text): hello\nnext: return")),
	)
	if err != nil {
		log.Fatal(err)
	}

	out, err := eng.Run(context.Background(), "main", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out["greeting"])
	// Output: hello
}
