package pipeline

// FrameBuffer 固定容量的帧队列，写满后淘汰最旧的帧
type FrameBuffer struct {
	capacity int
	frames   []*DataFrame
}

// NewFrameBuffer 创建容量为 capacity 的缓冲区，capacity 小于 1 时按 1 处理
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameBuffer{
		capacity: capacity,
		frames:   make([]*DataFrame, 0, capacity),
	}
}

// Push 追加一帧，缓冲区已满时先关闭并移除最旧的帧
func (b *FrameBuffer) Push(f *DataFrame) {
	if len(b.frames) >= b.capacity {
		b.frames[0].Close()
		copy(b.frames, b.frames[1:])
		b.frames[len(b.frames)-1] = nil
		b.frames = b.frames[:len(b.frames)-1]
	}
	b.frames = append(b.frames, f)
}

// Len 当前帧数，不超过容量
func (b *FrameBuffer) Len() int {
	return len(b.frames)
}

// Cap 缓冲区容量
func (b *FrameBuffer) Cap() int {
	return b.capacity
}

// Current 最新的帧，缓冲区为空时返回 nil
func (b *FrameBuffer) Current() *DataFrame {
	if len(b.frames) == 0 {
		return nil
	}
	return b.frames[len(b.frames)-1]
}

// Previous 倒数第二帧，不足两帧时返回 nil
func (b *FrameBuffer) Previous() *DataFrame {
	if len(b.frames) < 2 {
		return nil
	}
	return b.frames[len(b.frames)-2]
}

// Close 关闭所有帧
func (b *FrameBuffer) Close() {
	for _, f := range b.frames {
		f.Close()
	}
	b.frames = b.frames[:0]
}
