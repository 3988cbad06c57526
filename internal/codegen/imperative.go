package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

// torchDefaults is the constructor emitted for kinds without a direct
// translation. Their parameters are not carried over.
var torchDefaults = map[string]string{
	"Conv1D":                 "nn.LazyConv1d(32, kernel_size=3)",
	"Conv3D":                 "nn.LazyConv3d(32, kernel_size=3)",
	"Conv2DTranspose":        "nn.LazyConvTranspose2d(32, kernel_size=3)",
	"MaxPooling1D":           "nn.MaxPool1d(kernel_size=2)",
	"MaxPooling3D":           "nn.MaxPool3d(kernel_size=2)",
	"AveragePooling1D":       "nn.AvgPool1d(kernel_size=2)",
	"AveragePooling2D":       "nn.AvgPool2d(kernel_size=2)",
	"AveragePooling3D":       "nn.AvgPool3d(kernel_size=2)",
	"GlobalMaxPooling2D":     "nn.AdaptiveMaxPool2d(1)",
	"GlobalAveragePooling2D": "nn.AdaptiveAvgPool2d(1)",
	"BatchNormalization":     "nn.LazyBatchNorm2d()",
	"InstanceNormalization":  "nn.LazyInstanceNorm2d()",
	"LayerNormalization":     "nn.LayerNorm(128)",
	"LSTM":                   "nn.LSTM(input_size=128, hidden_size=128, batch_first=True)",
	"GRU":                    "nn.GRU(input_size=128, hidden_size=128, batch_first=True)",
	"SimpleRNN":              "nn.RNN(input_size=128, hidden_size=128, batch_first=True)",
	"Embedding":              "nn.Embedding(num_embeddings=1000, embedding_dim=128)",
	"MultiHeadAttention":     "nn.MultiheadAttention(embed_dim=128, num_heads=8, batch_first=True)",
	"TransformerEncoder":     "nn.TransformerEncoderLayer(d_model=128, nhead=8, batch_first=True)",
	"TransformerDecoder":     "nn.TransformerDecoderLayer(d_model=128, nhead=8, batch_first=True)",
	"SpatialDropout2D":       "nn.Dropout2d(p=0.5)",
	"AlphaDropout":           "nn.AlphaDropout(p=0.5)",
}

// torchActivations maps activation names to module constructors.
var torchActivations = map[string]string{
	"relu":       "nn.ReLU()",
	"sigmoid":    "nn.Sigmoid()",
	"tanh":       "nn.Tanh()",
	"softmax":    "nn.Softmax(dim=1)",
	"gelu":       "nn.GELU()",
	"elu":        "nn.ELU()",
	"selu":       "nn.SELU()",
	"leaky_relu": "nn.LeakyReLU()",
	"silu":       "nn.SiLU()",
	"swish":      "nn.SiLU()",
	"softplus":   "nn.Softplus()",
	"linear":     "nn.Identity()",
}

var torchOptimizers = map[string]string{
	"adam":     "Adam",
	"adamw":    "AdamW",
	"sgd":      "SGD",
	"rmsprop":  "RMSprop",
	"adagrad":  "Adagrad",
	"adadelta": "Adadelta",
	"adamax":   "Adamax",
	"nadam":    "NAdam",
}

var torchLosses = map[string]string{
	"categorical_crossentropy":        "nn.CrossEntropyLoss()",
	"sparse_categorical_crossentropy": "nn.CrossEntropyLoss()",
	"binary_crossentropy":             "nn.BCELoss()",
	"mse":                             "nn.MSELoss()",
	"mean_squared_error":              "nn.MSELoss()",
	"mae":                             "nn.L1Loss()",
	"mean_absolute_error":             "nn.L1Loss()",
	"huber":                           "nn.HuberLoss()",
	"kl_divergence":                   "nn.KLDivLoss()",
	"nll":                             "nn.NLLLoss()",
	"hinge":                           "nn.HingeEmbeddingLoss()",
}

// tupleOutputs return (output, state); forward keeps the output only.
var tupleOutputs = map[string]bool{
	"LSTM":               true,
	"GRU":                true,
	"SimpleRNN":          true,
	"MultiHeadAttention": true,
}

// torchMember is one module attribute and how forward calls it.
type torchMember struct {
	expr       string
	call       string
	activation string
}

func generateImperative(m *ir.Model, reg *plugin.Registry) (string, error) {
	members := make([]torchMember, 0, len(m.Layers))
	for _, l := range m.Layers {
		mem, err := torchLayer(l, reg)
		if err != nil {
			return "", err
		}
		members = append(members, mem)
	}

	var w pyWriter
	w.line(0, "import torch")
	w.line(0, "import torch.nn as nn")
	w.line(0, "import torch.nn.functional as F")
	w.line(0, "import torch.optim as optim")
	for _, imp := range pluginImports(reg, m, Imperative) {
		w.line(0, imp)
	}
	w.blank()
	w.blank()
	w.line(0, "class %s(nn.Module):", m.Name)
	w.line(1, "def __init__(self):")
	w.line(2, "super().__init__()")
	for i, mem := range members {
		w.line(2, "self.layer%d = %s", i+1, mem.expr)
	}
	w.blank()
	w.line(1, "def forward(self, x):")
	for i, mem := range members {
		w.line(2, mem.call, i+1)
		if mem.activation != "" {
			w.line(2, "x = %s", mem.activation)
		}
	}
	w.line(2, "return x")
	w.blank()
	w.blank()

	w.line(0, "model = %s()", m.Name)
	w.line(0, "model(torch.zeros(%s))", strings.Join(dryRunDims(m.InputShape), ", "))
	if m.Execution != nil {
		w.line(0, "device = %s", torchDevice(m.Execution.Device))
		w.line(0, "model.to(device)")
	}
	w.line(0, "criterion = %s", torchLoss(m.Loss))
	w.line(0, "optimizer = %s", torchOptimizer(m.Optimizer))

	if m.Training != nil {
		epochs, batch := trainingDefaults(m.Training)
		w.blank()
		w.line(0, "train_loader = torch.utils.data.DataLoader(train_dataset, batch_size=%d, shuffle=True)", batch)
		w.line(0, "for epoch in range(%d):", epochs)
		w.line(1, "model.train()")
		w.line(1, "for inputs, targets in train_loader:")
		if m.Execution != nil {
			w.line(2, "inputs, targets = inputs.to(device), targets.to(device)")
		}
		w.line(2, "optimizer.zero_grad()")
		w.line(2, "loss = criterion(model(inputs), targets)")
		w.line(2, "loss.backward()")
		w.line(2, "optimizer.step()")
	}
	return w.String(), nil
}

func torchLayer(l ir.LayerSpec, reg *plugin.Registry) (torchMember, error) {
	mem := torchMember{call: "x = self.layer%d(x)"}
	expr, ok, err := pluginEmit(reg, l, Imperative)
	if err != nil {
		return mem, err
	}
	if ok {
		mem.expr = expr
		return mem, nil
	}

	kind, bidirectional := l.Kind, false
	if wrapper, inner, ok := splitWrapper(l.Kind); ok {
		kind, bidirectional = inner, wrapper == "Bidirectional"
	}
	base := ir.LayerSpec{Kind: kind, Params: l.Params}

	switch kind {
	case "Conv2D":
		p, err := ir.DecodeConv2D(base)
		if err != nil {
			return mem, err
		}
		args := []string{fmt.Sprint(p.Filters), "kernel_size=" + Literal(ir.Tuple{ir.Int(p.KernelH), ir.Int(p.KernelW)})}
		if s, ok := base.Param("strides"); ok {
			args = append(args, "stride="+Literal(s))
		}
		if p.Padding != "" {
			args = append(args, "padding="+quote(p.Padding))
		}
		mem.expr = "nn.LazyConv2d(" + joinArgs(args...) + ")"
		mem.activation = activationCall(p.Activation)
	case "MaxPooling2D":
		p, err := ir.DecodePool2D(base)
		if err != nil {
			return mem, err
		}
		args := []string{"kernel_size=" + Literal(ir.Tuple{ir.Int(p.PoolH), ir.Int(p.PoolW)})}
		if p.Strides != nil {
			args = append(args, "stride="+Literal(p.Strides))
		}
		mem.expr = "nn.MaxPool2d(" + joinArgs(args...) + ")"
	case "Flatten":
		mem.expr = "nn.Flatten()"
	case "Dense", "Output":
		p, err := ir.DecodeDense(base)
		if err != nil {
			return mem, err
		}
		mem.expr = fmt.Sprintf("nn.LazyLinear(%d)", p.Units)
		mem.activation = activationCall(p.Activation)
	case "Dropout":
		p, err := ir.DecodeDropout(base)
		if err != nil {
			return mem, err
		}
		if p.Set {
			mem.expr = "nn.Dropout(p=" + ir.FormatFloat(p.Rate) + ")"
		} else {
			mem.expr = "nn.Dropout()"
		}
	case "Activation":
		v, _ := base.Param("activation")
		name, _ := ir.AsString(v)
		if mod, ok := torchActivations[strings.ToLower(name)]; ok {
			mem.expr = mod
		} else {
			mem.expr = "nn.Identity()"
			mem.activation = activationCall(name)
		}
	default:
		if def, ok := torchDefaults[kind]; ok {
			mem.expr = def
		} else {
			mem.expr = "nn." + kind + "()"
		}
		if bidirectional && tupleOutputs[kind] && strings.HasSuffix(mem.expr, ")") {
			mem.expr = strings.TrimSuffix(mem.expr, ")") + ", bidirectional=True)"
		}
	}

	switch {
	case kind == "MultiHeadAttention":
		mem.call = "x, _ = self.layer%d(x, x, x)"
	case tupleOutputs[kind]:
		mem.call = "x, _ = self.layer%d(x)"
	}
	return mem, nil
}

// activationCall renders the functional form of an activation applied to
// x, or "" for none or linear.
func activationCall(name string) string {
	switch strings.ToLower(name) {
	case "", "linear":
		return ""
	case "relu", "sigmoid", "tanh":
		return "torch." + strings.ToLower(name) + "(x)"
	case "softmax", "log_softmax":
		return "F." + strings.ToLower(name) + "(x, dim=1)"
	case "swish":
		return "F.silu(x)"
	default:
		return "F." + strings.ToLower(name) + "(x)"
	}
}

func torchOptimizer(opt ir.Optimizer) string {
	class, ok := torchOptimizers[strings.ToLower(opt.Name)]
	if !ok {
		class = opt.Name
	}
	args := []string{"model.parameters()"}
	for _, k := range opt.Params.Keys() {
		v, _ := opt.Params.Get(k)
		name := k
		if k == "learning_rate" {
			name = "lr"
		}
		args = append(args, name+"="+Literal(v))
	}
	return "optim." + class + "(" + joinArgs(args...) + ")"
}

func torchLoss(loss string) string {
	if expr, ok := torchLosses[strings.ToLower(loss)]; ok {
		return expr
	}
	return "getattr(nn, " + quote(loss) + ")()"
}

func torchDevice(device string) string {
	d := strings.ToLower(device)
	switch {
	case d == "auto":
		return "torch.device('cuda' if torch.cuda.is_available() else 'cpu')"
	case strings.HasPrefix(d, "gpu"):
		d = "cuda" + strings.TrimPrefix(d, "gpu")
	}
	return "torch.device(" + quote(d) + ")"
}

// dryRunDims is the argument list of a zero tensor matching the input:
// batch size 1 and channels moved first for image inputs. Unknown sizes
// become 1.
func dryRunDims(in ir.Shape) []string {
	s := sampleShape(in)
	if s.Rank() == 3 {
		s = ir.Shape{s[2], s[0], s[1]}
	}
	dims := []string{"1"}
	for _, d := range s {
		if d.Known() {
			dims = append(dims, d.String())
		} else {
			dims = append(dims, "1")
		}
	}
	return dims
}
